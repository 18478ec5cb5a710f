// Package logging builds the slog loggers used by the CLI and the
// composition pipeline.
//
// It offers a compact console handler for interactive runs and a JSON
// handler for machine consumption, attribute helpers that keep field names
// consistent, and context helpers that stamp request IDs, pipeline stages,
// and render passes onto every record.
package logging
