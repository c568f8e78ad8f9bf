// Package cipher implements the two symmetric stream transforms an archive
// can be sealed with: a repeating-key XOR and RC4.
//
// A Stream is stateful. One instance must be threaded through an entire
// pack or unpack pass; the keystream position advances with every byte
// applied and is never reset between fields or entries. Because both
// transforms XOR a keystream into the data, applying a fresh Stream with the
// same key to ciphertext restores the plaintext.
package cipher

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned for a cipher mode with no implementation.
var ErrUnknownMode = errors.New("unknown cipher mode")

// Mode selects the archive-wide cipher.
type Mode uint8

const (
	None Mode = iota
	XOR
	RC4
)

var modeNames = [...]string{
	None: "none",
	XOR:  "xor",
	RC4:  "rc4",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode parses a mode name as printed by Mode.String (case-insensitive).
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return None, fmt.Errorf("%w: %q (use none, xor or rc4)", ErrUnknownMode, s)
}

// Stream transforms bytes in place, advancing its keystream state.
type Stream interface {
	Apply(buf []byte)
}

// New returns a Stream for mode keyed with key. An empty key, or mode None,
// yields the identity transform.
//
//nolint:ireturn // returns the keystream for mode
func New(mode Mode, key []byte) (Stream, error) {
	switch mode {
	case None:
		return identity{}, nil
	case XOR:
		if len(key) == 0 {
			return identity{}, nil
		}
		return NewXOR(key), nil
	case RC4:
		if len(key) == 0 {
			return identity{}, nil
		}
		return NewRC4(key), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}
}

type identity struct{}

func (identity) Apply([]byte) {}
