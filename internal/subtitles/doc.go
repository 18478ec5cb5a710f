// Package subtitles turns narration text into display-ready SRT cues.
//
// The Chunker groups words into short cues, preferring sentence ends and
// refusing to strand prepositions, conjunctions, particles or numbers at a
// cue edge. Each cue is timed from the alignment index when its text can be
// located and proportionally by word position otherwise. SplitLines breaks a
// long cue into two balanced lines. The SRT helpers write, parse and validate
// the resulting files before they are burned into video.
package subtitles
