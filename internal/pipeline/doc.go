// Package pipeline runs one composition request end to end.
//
// A request moves through planning, rendering_base, an optional
// rendering_subtitles pass, and ends in done or failed. There is no re-entry
// and no automatic retry. Each transition is logged with the request id and,
// when the ledger is enabled, persisted through internal/history.
//
// Degradations (unusable alignment, unmatched segments, unavailable
// materials, workspace cleanup) are logged and the request continues. An
// ffmpeg failure fails the request but leaves artifacts from earlier passes
// on disk.
package pipeline
