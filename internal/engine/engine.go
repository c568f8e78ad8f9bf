// Package engine packs directory trees into archives and restores them.
//
// Pack and Unpack run sequentially on the calling goroutine, checking the
// context between entries. Progress is reported through an optional event
// channel and a stats.Collector; per-entry problems are collected in the
// Result rather than aborting the run.
package engine

import "github.com/zhiduo233/minibackup/internal/stats"

// Result is the outcome of a pack or unpack. Failures and Mismatches are
// recoverable; a fatal error is returned separately.
type Result struct {
	Stats      stats.Snapshot
	Failures   []Failure
	Mismatches []string
}

// Partial reports whether the operation finished with per-entry failures
// or checksum mismatches.
func (r Result) Partial() bool {
	return len(r.Failures) > 0 || len(r.Mismatches) > 0
}

// Failure is a per-entry error that did not stop the operation.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string {
	return f.Path + ": " + f.Err.Error()
}

func (f Failure) Unwrap() error { return f.Err }
