package ui

import "github.com/zhiduo233/minibackup/internal/event"

// Re-export event types for convenience.
const (
	ScanStarted      = event.ScanStarted
	ScanComplete     = event.ScanComplete
	EntryStarted     = event.EntryStarted
	EntryPacked      = event.EntryPacked
	EntryExtracted   = event.EntryExtracted
	EntryFailed      = event.EntryFailed
	EntrySkipped     = event.EntrySkipped
	ChecksumMismatch = event.ChecksumMismatch
	DirCreated       = event.DirCreated
	SymlinkCreated   = event.SymlinkCreated
	VerifyStarted    = event.VerifyStarted
	VerifyOK         = event.VerifyOK
	VerifyFailed     = event.VerifyFailed
)
