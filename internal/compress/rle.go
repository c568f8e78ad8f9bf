package compress

import (
	"errors"
	"io"
)

// maxRun is the longest run one (count, value) pair can carry.
const maxRun = 255

// rleFlushSize bounds the pending output an rleWriter holds before writing.
const rleFlushSize = 32 * 1024

// Compress run-length encodes src as (count, value) byte pairs. Runs longer
// than 255 bytes are split across several pairs. Compress(nil) is empty.
//
// Compress and Decompress are the whole-buffer reference forms of the RLE
// codec; archives are written and read through the streaming rleWriter and
// rleReader, which produce and accept the same bytes.
func Compress(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	out := make([]byte, 0, len(src)/2+2)
	for i := 0; i < len(src); i++ {
		count := 1
		for i+1 < len(src) && src[i] == src[i+1] && count < maxRun {
			count++
			i++
		}
		out = append(out, byte(count), src[i])
	}
	return out
}

// Decompress expands (count, value) pairs. A trailing unpaired byte is
// ignored. It is the whole-buffer counterpart of rleReader.
func Decompress(src []byte) []byte {
	var out []byte
	for i := 0; i+1 < len(src); i += 2 {
		for n := 0; n < int(src[i]); n++ {
			out = append(out, src[i+1])
		}
	}
	return out
}

// rleWriter is the streaming form of Compress: runs may span Write calls
// and the output is identical to Compress over the concatenated input.
type rleWriter struct {
	w     io.Writer
	buf   []byte
	val   byte
	count int
}

func newRLEWriter(w io.Writer) *rleWriter {
	return &rleWriter{w: w, buf: make([]byte, 0, rleFlushSize+2)}
}

func (rw *rleWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		if rw.count > 0 && b == rw.val && rw.count < maxRun {
			rw.count++
			continue
		}
		if rw.count > 0 {
			rw.buf = append(rw.buf, byte(rw.count), rw.val)
		}
		rw.val = b
		rw.count = 1
	}
	if len(rw.buf) >= rleFlushSize {
		if err := rw.flush(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close emits the final run. It does not close the underlying writer.
func (rw *rleWriter) Close() error {
	if rw.count > 0 {
		rw.buf = append(rw.buf, byte(rw.count), rw.val)
		rw.count = 0
	}
	return rw.flush()
}

func (rw *rleWriter) flush() error {
	if len(rw.buf) == 0 {
		return nil
	}
	_, err := rw.w.Write(rw.buf)
	rw.buf = rw.buf[:0]
	return err
}

// rleReader is the streaming form of Decompress.
type rleReader struct {
	r     io.Reader
	pair  [2]byte
	val   byte
	count int
	err   error
}

func newRLEReader(r io.Reader) *rleReader {
	return &rleReader{r: r}
}

func (rr *rleReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if rr.count > 0 {
			k := min(rr.count, len(p)-n)
			for i := 0; i < k; i++ {
				p[n+i] = rr.val
			}
			n += k
			rr.count -= k
			continue
		}
		if rr.err != nil {
			break
		}
		_, err := io.ReadFull(rr.r, rr.pair[:])
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				err = io.EOF
			}
			rr.err = err
			continue
		}
		rr.count = int(rr.pair[0])
		rr.val = rr.pair[1]
	}
	if n > 0 {
		return n, nil
	}
	return 0, rr.err
}
