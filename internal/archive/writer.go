package archive

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zhiduo233/minibackup/internal/checksum"
	"github.com/zhiduo233/minibackup/internal/cipher"
	"github.com/zhiduo233/minibackup/internal/compress"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	Password []byte
	// SpoolDir receives temporary files for payloads larger than SpoolLimit.
	// Empty means os.TempDir().
	SpoolDir   string
	SpoolLimit int
}

// Writer serializes entries onto an archive stream. It does not own the
// underlying writer; callers flush and close it.
type Writer struct {
	w      io.Writer
	hdr    Header
	opts   WriterOptions
	stream cipher.Stream
	buf    []byte
	meta   []byte
	n      int64
	err    error
}

// NewWriter writes the archive header to w and returns a Writer positioned at
// the first entry. A cipher without a password fails with ErrPasswordRequired.
func NewWriter(w io.Writer, hdr Header, opts WriterOptions) (*Writer, error) {
	magic, err := hdr.magic()
	if err != nil {
		return nil, err
	}
	if _, err := compress.FromFlag(hdr.Compression.Flag()); err != nil {
		return nil, err
	}
	if hdr.Cipher != cipher.None && len(opts.Password) == 0 {
		return nil, ErrPasswordRequired
	}
	stream, err := cipher.New(hdr.Cipher, opts.Password)
	if err != nil {
		return nil, err
	}

	aw := &Writer{
		w:      w,
		hdr:    hdr,
		opts:   opts,
		stream: stream,
		buf:    make([]byte, chunkSize),
	}
	head := append([]byte(magic), hdr.Compression.Flag())
	if err := aw.write(head); err != nil {
		return nil, err
	}
	return aw, nil
}

// Header returns the archive header being written.
func (aw *Writer) Header() Header { return aw.hdr }

// Written returns the number of archive bytes emitted so far.
func (aw *Writer) Written() int64 { return aw.n }

// Stage compresses src into a Spool so that its stored length and checksum
// are known before anything is written. A nil or empty src produces an empty
// spool. Errors reading src leave the archive untouched. The caller must
// Close the returned spool.
func (aw *Writer) Stage(src io.Reader) (*Spool, error) {
	sp := newSpool(aw.opts.SpoolDir, aw.opts.SpoolLimit)
	if src == nil {
		return sp, nil
	}
	br := bufio.NewReaderSize(src, chunkSize)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return sp, nil
		}
		return nil, err
	}

	h := checksum.New()
	cw, err := compress.NewWriter(aw.hdr.Compression, io.MultiWriter(sp, h))
	if err != nil {
		return nil, err
	}
	// The codec only ever sees Write: handing it br through ReadFrom is not
	// supported by every codec (lz4).
	if _, err := br.WriteTo(writerOnly{cw}); err != nil {
		cw.Close()
		sp.Close()
		return nil, err
	}
	if err := cw.Close(); err != nil {
		sp.Close()
		return nil, err
	}
	sp.crc = h.Sum32()
	return sp, nil
}

// Commit writes e with the staged payload. Size and CRC are taken from the
// spool; the completed entry is returned. A failed Commit leaves the archive
// unusable and every later call returns the same error.
func (aw *Writer) Commit(e Entry, sp *Spool) (Entry, error) {
	if aw.err != nil {
		return e, aw.err
	}
	if e.Kind < Regular || e.Kind > Symlink {
		return e, fmt.Errorf("entry %q: invalid kind %d", e.Path, e.Kind)
	}
	if len(e.Path) == 0 || len(e.Path) > MaxPathLen {
		return e, fmt.Errorf("entry %q: path length %d out of range", e.Path, len(e.Path))
	}
	e.Size, e.CRC = sp.Size(), sp.CRC()

	meta := aw.encode(e)
	aw.stream.Apply(meta)
	if err := aw.write(meta); err != nil {
		return e, err
	}
	if e.Size == 0 {
		return e, nil
	}

	r, err := sp.reader()
	if err != nil {
		aw.err = err
		return e, err
	}
	var copied uint64
	for {
		n, rerr := r.Read(aw.buf)
		if n > 0 {
			aw.stream.Apply(aw.buf[:n])
			if err := aw.write(aw.buf[:n]); err != nil {
				return e, err
			}
			copied += uint64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			aw.err = fmt.Errorf("read spool: %w", rerr)
			return e, aw.err
		}
	}
	if copied != e.Size {
		aw.err = fmt.Errorf("entry %q: spooled %d bytes, expected %d", e.Path, copied, e.Size)
		return e, aw.err
	}
	return e, nil
}

// WriteEntry stages src and commits it in one step.
func (aw *Writer) WriteEntry(e Entry, src io.Reader) (Entry, error) {
	sp, err := aw.Stage(src)
	if err != nil {
		return e, err
	}
	defer sp.Close()
	return aw.Commit(e, sp)
}

func (aw *Writer) encode(e Entry) []byte {
	b := aw.meta[:0]
	b = append(b, byte(e.Kind))
	b = binary.LittleEndian.AppendUint64(b, uint64(len(e.Path)))
	b = append(b, e.Path...)
	b = binary.LittleEndian.AppendUint64(b, e.Size)
	b = binary.LittleEndian.AppendUint32(b, e.CRC)
	b = binary.LittleEndian.AppendUint32(b, e.Mode)
	b = binary.LittleEndian.AppendUint32(b, e.UID)
	b = binary.LittleEndian.AppendUint32(b, e.GID)
	b = binary.LittleEndian.AppendUint64(b, uint64(e.ModTime))
	aw.meta = b
	return b
}

func (aw *Writer) write(p []byte) error {
	n, err := aw.w.Write(p)
	aw.n += int64(n)
	if err != nil {
		aw.err = fmt.Errorf("write archive: %w", err)
		return aw.err
	}
	return nil
}

// writerOnly hides any ReadFrom method of the wrapped writer.
type writerOnly struct{ io.Writer }
