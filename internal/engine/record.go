package engine

import (
	"github.com/zhiduo233/minibackup/internal/archive"
	"github.com/zhiduo233/minibackup/internal/filter"
)

// Kind classifies a scanned filesystem entry.
type Kind int

const (
	Other Kind = iota // sockets, devices, fifos; never archived
	Regular
	Dir
	Symlink
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "file"
	case Dir:
		return "dir"
	case Symlink:
		return "symlink"
	default:
		return "other"
	}
}

// FileRecord describes one entry found by Scan.
type FileRecord struct {
	RelPath    string // slash-separated, relative to the scan root
	AbsPath    string
	LinkTarget string // symlinks only
	Size       uint64 // regular: content length; symlink: target length; dir: 0
	ModTime    int64  // seconds since epoch
	Mode       uint32 // unix st_mode
	UID        uint32
	GID        uint32
	Kind       Kind
}

func (r FileRecord) filterEntry() filter.Entry {
	return filter.Entry{
		RelPath:   r.RelPath,
		Size:      r.Size,
		ModTime:   r.ModTime,
		UID:       r.UID,
		IsDir:     r.Kind == Dir,
		IsSymlink: r.Kind == Symlink,
	}
}

func (r FileRecord) archiveEntry() archive.Entry {
	e := archive.Entry{
		Path:    r.RelPath,
		Mode:    r.Mode,
		UID:     r.UID,
		GID:     r.GID,
		ModTime: r.ModTime,
	}
	switch r.Kind {
	case Regular:
		e.Kind = archive.Regular
	case Dir:
		e.Kind = archive.Dir
	case Symlink:
		e.Kind = archive.Symlink
	}
	return e
}
