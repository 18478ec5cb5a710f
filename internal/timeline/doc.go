// Package timeline maps narration text segments onto audio time.
//
// Each Segment proposes a material for a stretch of narration. Mapper
// resolves the segments against an alignment index in spoken order, emitting
// Entries with start and end times that never run past the audio. When no
// usable alignment exists the segments are spread evenly over the duration.
package timeline
