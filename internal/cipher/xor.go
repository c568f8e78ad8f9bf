package cipher

// XORStream XORs data with a repeating key. The key index follows the global
// byte offset since construction, so splitting the data into differently
// sized Apply calls does not change the output.
type XORStream struct {
	key []byte
	off int
}

// NewXOR returns a repeating-key XOR stream. key must not be empty.
func NewXOR(key []byte) *XORStream {
	k := make([]byte, len(key))
	copy(k, key)
	return &XORStream{key: k}
}

func (s *XORStream) Apply(buf []byte) {
	n := len(s.key)
	for k := range buf {
		buf[k] ^= s.key[s.off]
		s.off++
		if s.off == n {
			s.off = 0
		}
	}
}
