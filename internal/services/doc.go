// Package services defines shared utilities consumed by the composition
// pipeline and its supporting packages.
//
// Key responsibilities:
//   - Context helpers that stamp request IDs, pipeline stages, and render
//     pass names for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     as degradations (alignment misses, unknown materials, cleanup leaks) or
//     aborts (render process failures).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across components.
package services
