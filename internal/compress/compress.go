// Package compress holds the payload codecs an archive can use. The mode is
// archive-wide and recorded in the header as a single flag byte.
package compress

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnknownMode is returned for a flag byte or name with no codec.
var ErrUnknownMode = errors.New("unknown compression mode")

// Mode selects the payload codec. Its numeric value is the header flag.
type Mode uint8

const (
	None Mode = iota
	RLE
	Zstd
	LZ4
)

var modeNames = [...]string{
	None: "none",
	RLE:  "rle",
	Zstd: "zstd",
	LZ4:  "lz4",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Flag returns the header byte for m.
func (m Mode) Flag() byte { return byte(m) }

// FromFlag maps a header byte back to a Mode.
func FromFlag(b byte) (Mode, error) {
	if int(b) >= len(modeNames) {
		return None, fmt.Errorf("%w: flag %d", ErrUnknownMode, b)
	}
	return Mode(b), nil
}

// ParseMode parses a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return None, fmt.Errorf("%w: %q (use none, rle, zstd or lz4)", ErrUnknownMode, s)
}

// NewWriter returns a writer that compresses into w. Close flushes the
// codec but leaves w open.
func NewWriter(m Mode, w io.Writer) (io.WriteCloser, error) {
	switch m {
	case None:
		return nopWriteCloser{w}, nil
	case RLE:
		return newRLEWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return enc, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, m)
	}
}

// NewReader returns a reader that decompresses r.
func NewReader(m Mode, r io.Reader) (io.ReadCloser, error) {
	switch m {
	case None:
		return io.NopCloser(r), nil
	case RLE:
		return io.NopCloser(newRLEReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return zstdReadCloser{dec}, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, m)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
