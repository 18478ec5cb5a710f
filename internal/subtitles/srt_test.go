package subtitles_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"montage/internal/config"
	"montage/internal/subtitles"
	"montage/internal/testsupport"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{7.75, "00:00:07,750"},
		{0.3, "00:00:00,300"},
		{3661.5, "01:01:01,500"},
		{-2, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := subtitles.FormatTimestamp(tt.seconds); got != tt.want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestWriteSRTProducesStandardBlocks(t *testing.T) {
	cues := []subtitles.Cue{
		{Index: 1, Start: 0, End: 1.5, Lines: []string{"Привет мир."}},
		{Index: 2, Start: 1.5, End: 3, Lines: []string{"Первая строка", "вторая строка"}},
	}
	path := filepath.Join(t.TempDir(), "out", "narration.srt")
	if err := subtitles.WriteSRT(path, cues); err != nil {
		t.Fatalf("WriteSRT returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nПривет мир.\n\n2\n00:00:01,500 --> 00:00:03,000\nПервая строка\nвторая строка\n"
	if string(data) != want {
		t.Fatalf("unexpected srt:\n%s", data)
	}

	parsed, err := subtitles.ParseSRT(data)
	if err != nil {
		t.Fatalf("ParseSRT returned error: %v", err)
	}
	if len(parsed) != 2 || parsed[1].Start != 1.5 || len(parsed[1].Lines) != 2 {
		t.Fatalf("unexpected parsed cues %+v", parsed)
	}
}

func TestParseSRTRejectsBadTiming(t *testing.T) {
	if _, err := subtitles.ParseSRT([]byte("1\n00:00:01 --> 00:00:02,000\ntext\n")); err == nil {
		t.Fatal("expected timing error")
	}
}

func TestValidateSRTContent(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		audio   float64
		issue   string
	}{
		{"valid", "1\n00:00:00,000 --> 00:00:01,000\nok\n", 2, ""},
		{"empty", "", 2, "empty_subtitle_file"},
		{"overrun", "1\n00:00:00,000 --> 00:00:05,000\nlong\n", 2, "duration_overrun"},
		{"non monotonic", "1\n00:00:02,000 --> 00:00:03,000\nb\n\n2\n00:00:01,000 --> 00:00:02,000\na\n", 5, "non_monotonic_start"},
		{"too many lines", "1\n00:00:00,000 --> 00:00:01,000\na\nb\nc\n", 2, "too_many_lines"},
		{"inverted", "1\n00:00:02,000 --> 00:00:01,000\na\n", 5, "inverted_cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testsupport.WriteText(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".srt", tt.content)
			issues := subtitles.ValidateSRTContent(path, tt.audio)
			if tt.issue == "" {
				if len(issues) != 0 {
					t.Fatalf("expected no issues, got %v", issues)
				}
				return
			}
			found := false
			for _, issue := range issues {
				if strings.HasPrefix(issue, tt.issue) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %s in %v", tt.issue, issues)
			}
		})
	}
}

func TestStyleForceStyleDefaults(t *testing.T) {
	got := subtitles.StyleFromConfig(config.Default().Subtitles).ForceStyle()
	want := "FontSize=12,PrimaryColour=&H00C2CC,Outline=0,Shadow=1,BackColour=&H80000000"
	if got != want {
		t.Fatalf("ForceStyle = %q, want %q", got, want)
	}
}

func TestTrimCues(t *testing.T) {
	cues := []subtitles.Cue{
		{Index: 1, Start: 0, End: 4, Lines: []string{"one"}},
		{Index: 2, Start: 4, End: 8, Lines: []string{"two"}},
		{Index: 3, Start: 8, End: 12, Lines: []string{"three"}},
	}

	tests := []struct {
		name  string
		limit float64
		want  [][2]float64
	}{
		{name: "no limit", limit: 0, want: [][2]float64{{0, 4}, {4, 8}, {8, 12}}},
		{name: "clamps straddling cue", limit: 6, want: [][2]float64{{0, 4}, {4, 6}}},
		{name: "drops cue starting at limit", limit: 8, want: [][2]float64{{0, 4}, {4, 8}}},
		{name: "longer than cues", limit: 20, want: [][2]float64{{0, 4}, {4, 8}, {8, 12}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := subtitles.TrimCues(cues, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d cues, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				if got[i].Start != w[0] || got[i].End != w[1] || got[i].Index != i+1 {
					t.Fatalf("cue %d = %+v, want %v", i, got[i], w)
				}
			}
		})
	}
	if cues[1].End != 8 {
		t.Fatal("TrimCues must not modify its input")
	}
}
