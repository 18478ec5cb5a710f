// Package composition builds ffmpeg filter graphs that overlay materials on
// a base video in time with narration.
//
// Planner resolves timeline entries to local assets, decodes and scales each
// distinct asset exactly once, splits it when it is shown more than once and
// chains one overlay per entry. Plans are pure data: Args renders the complete
// ffmpeg argument list and identical inputs always produce identical plans.
package composition
