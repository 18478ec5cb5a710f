// Package assets resolves manifest materials to files on local disk.
//
// Local and file:// sources are used in place after an existence check.
// http(s):// and s3:// sources are downloaded in parallel, bounded by
// assets.concurrency, into a per-request directory. A material that cannot
// be acquired is reported and left out of the returned map; the planner then
// skips its overlays.
package assets
