// Package render executes composition plans with ffmpeg.
//
// Every pass runs inside a private workspace under the configured work
// directory. The encoded file is moved to its destination only after ffmpeg
// exits cleanly, and the workspace is removed on every exit path. Failed
// passes surface as *ProcessError carrying the exit code and the tail of
// ffmpeg's diagnostics.
package render
