// Package main hosts the montage CLI entrypoint and command graph.
//
// Commands load a request manifest, run one stage of the composition
// pipeline (timeline mapping, planning, subtitle generation) or the whole
// request, and print the result as a table or, with --json, as JSON. Config
// resolution and logger construction live in commandContext so subcommands
// only deal with their own flags.
package main
