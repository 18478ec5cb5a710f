// Package manifest loads composition requests from JSON or YAML files.
//
// A manifest names the base video, narration audio and transcript, the
// alignment payload and segment timeline (inline or by file), and the
// materials to overlay. Relative paths resolve against the manifest's own
// directory so a request folder can be moved as a unit.
package manifest
