// Package repograph persists the upstream to downstream repository graph.
//
// Store keeps the mapping in memory behind a read/write mutex and rewrites
// the whole JSON document on every mutation through a temp-file-and-rename
// replace, so a crash mid-write never leaves a truncated file behind.
package repograph
