// Package event defines the progress notifications emitted by the engine.
package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	ScanComplete
	EntryStarted
	EntryPacked
	EntryExtracted
	EntryFailed
	EntrySkipped
	ChecksumMismatch
	DirCreated
	SymlinkCreated
	VerifyStarted
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	ScanStarted:      "ScanStarted",
	ScanComplete:     "ScanComplete",
	EntryStarted:     "EntryStarted",
	EntryPacked:      "EntryPacked",
	EntryExtracted:   "EntryExtracted",
	EntryFailed:      "EntryFailed",
	EntrySkipped:     "EntrySkipped",
	ChecksumMismatch: "ChecksumMismatch",
	DirCreated:       "DirCreated",
	SymlinkCreated:   "SymlinkCreated",
	VerifyStarted:    "VerifyStarted",
	VerifyOK:         "VerifyOK",
	VerifyFailed:     "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event is a single progress notification.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // archive-relative, slash separated
	Size      int64  // raw bytes for the entry
	Stored    int64  // bytes as written to the archive
	Total     int64  // entry count (ScanComplete)
	TotalSize int64  // byte count (ScanComplete)
	Error     error
}

// Sink delivers events to an optional channel. The zero value discards.
type Sink chan<- Event

// Emit sends ev with a timestamp if the sink is set.
func (s Sink) Emit(ev Event) {
	if s == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s <- ev
}
