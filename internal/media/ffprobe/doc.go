// Package ffprobe decodes `ffprobe -show_format -show_streams` JSON into
// typed results. montage uses it to measure base video and narration
// durations before planning a composition.
package ffprobe
