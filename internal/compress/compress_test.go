package compress

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecsRoundTrip(t *testing.T) {
	data := append(bytes.Repeat([]byte("compressible payload "), 2000), 0, 1, 2, 3)

	for _, m := range []Mode{None, RLE, Zstd, LZ4} {
		t.Run(m.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(m, &buf)
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := NewReader(m, bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestRLEWriterIsCompress(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(RLE, &buf)
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte("A"), 10))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, []byte{0x0A, 0x41}, buf.Bytes())
}

func TestFlags(t *testing.T) {
	assert.Equal(t, byte(0), None.Flag())
	assert.Equal(t, byte(1), RLE.Flag())

	m, err := FromFlag(1)
	require.NoError(t, err)
	assert.Equal(t, RLE, m)

	_, err = FromFlag(42)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, m)

	_, err = ParseMode("gzip")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestUnknownModeCodecs(t *testing.T) {
	_, err := NewWriter(Mode(77), io.Discard)
	assert.ErrorIs(t, err, ErrUnknownMode)
	_, err = NewReader(Mode(77), bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrUnknownMode)
}
