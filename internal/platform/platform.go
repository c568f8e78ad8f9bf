// Package platform holds the filesystem operations whose availability
// depends on the host: ownership lookup and mode/owner/time restoration.
// Where an operation is unsupported it is a no-op.
package platform

import (
	"io/fs"
	"time"
)

const (
	sIFDIR = 0o040000
	sIFREG = 0o100000
	sIFLNK = 0o120000
	sIFMT  = 0o170000
	sISUID = 0o4000
	sISGID = 0o2000
	sISVTX = 0o1000
)

// Metadata is the per-entry state restored after materialization.
type Metadata struct {
	Mode    uint32 // unix st_mode
	UID     uint32
	GID     uint32
	ModTime time.Time
}

// Options selects which attributes RestoreMetadata applies.
type Options struct {
	Mode  bool
	Owner bool
	Times bool
}

// AllMetadata restores everything the archive records.
var AllMetadata = Options{Mode: true, Owner: true, Times: true}

// UnixMode converts m to st_mode bits, including the file type.
func UnixMode(m fs.FileMode) uint32 {
	v := uint32(m.Perm())
	if m&fs.ModeSetuid != 0 {
		v |= sISUID
	}
	if m&fs.ModeSetgid != 0 {
		v |= sISGID
	}
	if m&fs.ModeSticky != 0 {
		v |= sISVTX
	}
	switch {
	case m&fs.ModeSymlink != 0:
		v |= sIFLNK
	case m.IsDir():
		v |= sIFDIR
	case m.IsRegular():
		v |= sIFREG
	}
	return v
}

// FileMode returns the permission and special bits of an st_mode value. The
// file type bits are dropped.
func FileMode(v uint32) fs.FileMode {
	m := fs.FileMode(v & 0o777)
	if v&sISUID != 0 {
		m |= fs.ModeSetuid
	}
	if v&sISGID != 0 {
		m |= fs.ModeSetgid
	}
	if v&sISVTX != 0 {
		m |= fs.ModeSticky
	}
	return m
}
