package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// DefaultSpoolLimit is how much stored payload a Spool keeps in memory
// before spilling to a temporary file.
const DefaultSpoolLimit = 4 << 20

// Spool holds one entry's stored payload until its length and checksum are
// known and the metadata block can be written ahead of it.
type Spool struct {
	mem   bytes.Buffer
	file  *os.File
	dir   string
	limit int
	size  uint64
	crc   uint32
}

func newSpool(dir string, limit int) *Spool {
	if limit <= 0 {
		limit = DefaultSpoolLimit
	}
	return &Spool{dir: dir, limit: limit}
}

// Size returns the stored payload length.
func (s *Spool) Size() uint64 { return s.size }

// CRC returns the checksum of the stored payload.
func (s *Spool) CRC() uint32 { return s.crc }

// Spilled reports whether the payload outgrew memory.
func (s *Spool) Spilled() bool { return s.file != nil }

func (s *Spool) Write(p []byte) (int, error) {
	if s.file == nil && s.mem.Len()+len(p) > s.limit {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}
	var (
		n   int
		err error
	)
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.mem.Write(p)
	}
	s.size += uint64(n)
	return n, err
}

func (s *Spool) spill() error {
	f, err := os.CreateTemp(s.dir, ".minibk-spool-*")
	if err != nil {
		return fmt.Errorf("create spool: %w", err)
	}
	if _, err := f.Write(s.mem.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write spool: %w", err)
	}
	s.mem.Reset()
	s.file = f
	return nil
}

func (s *Spool) reader() (io.Reader, error) {
	if s.file == nil {
		return bytes.NewReader(s.mem.Bytes()), nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind spool: %w", err)
	}
	return s.file, nil
}

// Close releases the spool, removing any temporary file.
func (s *Spool) Close() error {
	s.mem.Reset()
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	s.file = nil
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}
