package subtitles

import (
	"fmt"
	"os"
)

// maxCueLines is the most lines a cue may carry on screen.
const maxCueLines = 2

// durationTolerance absorbs millisecond rounding in the last cue's end.
const durationTolerance = 0.05

// ValidateSRTContent checks an SRT file for format issues.
// Returns a list of issues found; empty slice means validation passed.
func ValidateSRTContent(path string, audioSeconds float64) []string {
	var issues []string

	data, err := os.ReadFile(path)
	if err != nil {
		return append(issues, fmt.Sprintf("read_error: %v", err))
	}
	cues, err := ParseSRT(data)
	if err != nil {
		return append(issues, fmt.Sprintf("timestamp_parse_error: %v", err))
	}
	if len(cues) == 0 {
		return append(issues, "empty_subtitle_file")
	}

	var prevStart float64
	for i, cue := range cues {
		if cue.End < cue.Start {
			issues = append(issues, fmt.Sprintf("inverted_cue: cue=%d", i+1))
		}
		if i > 0 && cue.Start < prevStart {
			issues = append(issues, fmt.Sprintf("non_monotonic_start: cue=%d", i+1))
		}
		prevStart = cue.Start
		if len(cue.Lines) == 0 {
			issues = append(issues, fmt.Sprintf("empty_cue: cue=%d", i+1))
		}
		if len(cue.Lines) > maxCueLines {
			issues = append(issues, fmt.Sprintf("too_many_lines: cue=%d lines=%d", i+1, len(cue.Lines)))
		}
		if audioSeconds > 0 && cue.End > audioSeconds+durationTolerance {
			issues = append(issues, fmt.Sprintf("duration_overrun: cue=%d end=%.3fs audio=%.3fs", i+1, cue.End, audioSeconds))
		}
	}
	return issues
}
