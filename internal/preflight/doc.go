// Package preflight provides readiness checks for the filesystem paths and
// external binaries montage depends on.
//
// The pipeline calls RunAll before planning so a request with an unwritable
// work directory or a missing ffmpeg fails fast. The CLI "montage check"
// command renders the same results as a table.
//
// The subtitle filter probe only runs when burn-in is enabled.
package preflight
