package cipher

import "crypto/rc4" //nolint:gosec // RC4 is an archive format mode

// maxRC4Key is the longest key the RC4 schedule can consume; bytes past it
// never influence the permutation.
const maxRC4Key = 256

// RC4Stream is classic RC4. The permutation table and the i, j indices live
// inside the underlying rc4.Cipher and persist across Apply calls.
type RC4Stream struct {
	c *rc4.Cipher
}

// NewRC4 runs the key schedule for key. An empty key yields a stream that
// leaves data untouched, matching New.
func NewRC4(key []byte) *RC4Stream {
	if len(key) == 0 {
		return &RC4Stream{}
	}
	if len(key) > maxRC4Key {
		key = key[:maxRC4Key]
	}
	c, _ := rc4.NewCipher(key) //nolint:errcheck // only fails on an empty key
	return &RC4Stream{c: c}
}

func (s *RC4Stream) Apply(buf []byte) {
	if s.c == nil {
		return
	}
	s.c.XORKeyStream(buf, buf)
}
