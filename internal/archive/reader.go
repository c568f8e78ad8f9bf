package archive

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/zhiduo233/minibackup/internal/checksum"
	"github.com/zhiduo233/minibackup/internal/cipher"
	"github.com/zhiduo233/minibackup/internal/compress"
)

// ChecksumError reports a payload whose CRC-32 does not match the stored
// value. It matches ErrChecksumMismatch under errors.Is.
type ChecksumError struct {
	Path     string
	Stored   uint32
	Computed uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch (stored %s, computed %s)",
		e.Path, checksum.Hex(e.Stored), checksum.Hex(e.Computed))
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Reader walks an archive entry by entry.
//
//	for {
//		e, err := ar.Next()
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//
// Unread payload is skipped (and still decrypted) by the next call to Next.
type Reader struct {
	r      *bufio.Reader
	hdr    Header
	stream cipher.Stream
	cur    Entry
	remain uint64
	crc    hash.Hash32
	buf    []byte
	err    error
}

// NewReader validates the archive header and prepares the cipher. An
// encrypted archive opened without a password fails with ErrPasswordRequired.
func NewReader(r io.Reader, password []byte) (*Reader, error) {
	br := bufio.NewReaderSize(r, chunkSize)
	head := make([]byte, headerLen)
	if _, err := io.ReadFull(br, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: file shorter than header", ErrBadMagic)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	mode, err := cipherForMagic(string(head[:magicLen]))
	if err != nil {
		return nil, err
	}
	comp, err := compress.FromFlag(head[magicLen])
	if err != nil {
		return nil, err
	}
	if mode != cipher.None && len(password) == 0 {
		return nil, ErrPasswordRequired
	}
	stream, err := cipher.New(mode, password)
	if err != nil {
		return nil, err
	}
	return &Reader{
		r:      br,
		hdr:    Header{Cipher: mode, Compression: comp},
		stream: stream,
		crc:    checksum.New(),
		buf:    make([]byte, chunkSize),
	}, nil
}

// Header returns the archive header.
func (ar *Reader) Header() Header { return ar.hdr }

// Next advances to the following entry. It returns io.EOF when the archive
// ends cleanly on an entry boundary and an ErrCorrupt-wrapped error when it
// ends anywhere else or an entry carries implausible fields.
func (ar *Reader) Next() (Entry, error) {
	if ar.err != nil {
		return Entry{}, ar.err
	}
	if ar.remain > 0 {
		if err := ar.drain(); err != nil {
			return Entry{}, err
		}
	}

	var kind [1]byte
	if _, err := io.ReadFull(ar.r, kind[:]); err != nil {
		if errors.Is(err, io.EOF) {
			ar.err = io.EOF
			return Entry{}, io.EOF
		}
		return Entry{}, ar.fail(fmt.Errorf("read archive: %w", err))
	}
	ar.stream.Apply(kind[:])
	e := Entry{Kind: Kind(kind[0])}
	if e.Kind < Regular || e.Kind > Symlink {
		return Entry{}, ar.fail(fmt.Errorf("%w: entry type %d", ErrCorrupt, kind[0]))
	}

	var word [8]byte
	if err := ar.readFull(word[:]); err != nil {
		return Entry{}, err
	}
	pathLen := binary.LittleEndian.Uint64(word[:])
	if pathLen == 0 || pathLen > MaxPathLen {
		return Entry{}, ar.fail(fmt.Errorf("%w: path length %d", ErrCorrupt, pathLen))
	}
	path := make([]byte, pathLen)
	if err := ar.readFull(path); err != nil {
		return Entry{}, err
	}
	e.Path = string(path)

	var meta [metaLen]byte
	if err := ar.readFull(meta[:]); err != nil {
		return Entry{}, err
	}
	e.Size = binary.LittleEndian.Uint64(meta[0:8])
	e.CRC = binary.LittleEndian.Uint32(meta[8:12])
	e.Mode = binary.LittleEndian.Uint32(meta[12:16])
	e.UID = binary.LittleEndian.Uint32(meta[16:20])
	e.GID = binary.LittleEndian.Uint32(meta[20:24])
	e.ModTime = int64(binary.LittleEndian.Uint64(meta[24:32]))

	ar.cur = e
	ar.remain = e.Size
	ar.crc.Reset()
	return e, nil
}

// Payload returns the current entry's stored bytes, decrypted but still
// compressed. Everything read through it feeds the entry checksum.
func (ar *Reader) Payload() io.Reader {
	return payloadReader{ar}
}

// Open returns the current entry's decompressed content. An empty payload
// reads as empty whatever the compression mode.
func (ar *Reader) Open() (io.ReadCloser, error) {
	if ar.cur.Size == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return compress.NewReader(ar.hdr.Compression, ar.Payload())
}

// Verify consumes whatever is left of the current payload and compares its
// CRC-32 with the stored one, returning a *ChecksumError on mismatch.
func (ar *Reader) Verify() error {
	if ar.remain > 0 {
		if err := ar.drain(); err != nil {
			return err
		}
	}
	if got := ar.crc.Sum32(); got != ar.cur.CRC {
		return &ChecksumError{Path: ar.cur.Path, Stored: ar.cur.CRC, Computed: got}
	}
	return nil
}

func (ar *Reader) drain() error {
	if _, err := io.CopyBuffer(io.Discard, payloadReader{ar}, ar.buf); err != nil {
		return err
	}
	return nil
}

func (ar *Reader) readFull(p []byte) error {
	if _, err := io.ReadFull(ar.r, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ar.fail(fmt.Errorf("%w: truncated entry", ErrCorrupt))
		}
		return ar.fail(fmt.Errorf("read archive: %w", err))
	}
	ar.stream.Apply(p)
	return nil
}

func (ar *Reader) fail(err error) error {
	ar.err = err
	return err
}

type payloadReader struct{ ar *Reader }

func (p payloadReader) Read(b []byte) (int, error) {
	ar := p.ar
	if ar.err != nil {
		return 0, ar.err
	}
	if ar.remain == 0 {
		return 0, io.EOF
	}
	if uint64(len(b)) > ar.remain {
		b = b[:ar.remain]
	}
	n, err := ar.r.Read(b)
	if n > 0 {
		ar.stream.Apply(b[:n])
		ar.crc.Write(b[:n])
		ar.remain -= uint64(n)
	}
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		if ar.remain > 0 {
			return n, ar.fail(fmt.Errorf("%w: %s: truncated payload", ErrCorrupt, ar.cur.Path))
		}
		return n, io.EOF
	default:
		return n, ar.fail(fmt.Errorf("read archive: %w", err))
	}
}
