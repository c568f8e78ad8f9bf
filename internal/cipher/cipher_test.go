package cipher

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRC4KnownVectors(t *testing.T) {
	tests := []struct {
		key, plain, want string
	}{
		{"Key", "Plaintext", "bbf316e8d940af0ad3"},
		{"Wiki", "pedia", "1021bf0420"},
		{"Secret", "Attack at dawn", "45a01f645fc35b383552544b9bf5"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			buf := []byte(tt.plain)
			NewRC4([]byte(tt.key)).Apply(buf)
			assert.Equal(t, tt.want, hex.EncodeToString(buf))
		})
	}
}

func TestRC4StateContinuesAcrossCalls(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 100)

	whole := append([]byte(nil), data...)
	NewRC4([]byte("pw")).Apply(whole)

	pieces := append([]byte(nil), data...)
	s := NewRC4([]byte("pw"))
	s.Apply(pieces[:1])
	s.Apply(pieces[1:9])
	s.Apply(pieces[9:500])
	s.Apply(pieces[500:])

	assert.Equal(t, whole, pieces)
}

func TestRC4LongKeyTruncated(t *testing.T) {
	long := bytes.Repeat([]byte{0x5a}, 300)
	a := []byte("payload")
	b := []byte("payload")
	NewRC4(long).Apply(a)
	NewRC4(long[:256]).Apply(b)
	assert.Equal(t, b, a)
}

func TestXORRepeatsKey(t *testing.T) {
	buf := []byte{0, 0, 0, 0, 0}
	NewXOR([]byte("pw")).Apply(buf)
	assert.Equal(t, []byte("pwpwp"), buf)
}

func TestXORFollowsGlobalOffset(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	whole := append([]byte(nil), data...)
	NewXOR([]byte("abc")).Apply(whole)

	pieces := append([]byte(nil), data...)
	s := NewXOR([]byte("abc"))
	s.Apply(pieces[:1])
	s.Apply(pieces[1:9])
	s.Apply(pieces[9:])

	assert.Equal(t, whole, pieces)
}

func TestReversibleWithFreshInstance(t *testing.T) {
	for _, mode := range []Mode{None, XOR, RC4} {
		t.Run(mode.String(), func(t *testing.T) {
			data := []byte("some secret bytes \x00\x01\x02 with binary")
			buf := append([]byte(nil), data...)

			enc, err := New(mode, []byte("hunter2"))
			require.NoError(t, err)
			enc.Apply(buf)
			if mode != None {
				assert.NotEqual(t, data, buf)
			}

			dec, err := New(mode, []byte("hunter2"))
			require.NoError(t, err)
			dec.Apply(buf)
			assert.Equal(t, data, buf)
		})
	}
}

func TestEmptyKeyIsIdentity(t *testing.T) {
	for _, mode := range []Mode{XOR, RC4} {
		t.Run(mode.String(), func(t *testing.T) {
			s, err := New(mode, nil)
			require.NoError(t, err)
			buf := []byte("unchanged")
			s.Apply(buf)
			assert.Equal(t, []byte("unchanged"), buf)
		})
	}
}

func TestNewRC4EmptyKeyIsIdentity(t *testing.T) {
	for _, key := range [][]byte{nil, {}} {
		s := NewRC4(key)
		buf := []byte("unchanged")
		require.NotPanics(t, func() { s.Apply(buf) })
		assert.Equal(t, []byte("unchanged"), buf)
	}
}

func TestNewUnknownMode(t *testing.T) {
	_, err := New(Mode(9), []byte("k"))
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"none", "XOR", "Rc4"} {
		m, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(name), m.String())
	}
	_, err := ParseMode("aes")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
