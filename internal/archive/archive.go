// Package archive reads and writes the minibackup container format.
//
// An archive is a 9-byte header followed by entries, read strictly front to
// back:
//
//	[8B magic][1B compression flag]
//	[1B type][8B pathLen][path][8B payloadLen][4B crc32]
//	[4B mode][4B uid][4B gid][8B mtime][payload]...
//
// Integers are little-endian. The magic selects the cipher; everything after
// the header is passed through a single cipher stream whose state carries
// over from one field and one entry to the next. The CRC covers the stored
// payload after compression and before encryption.
package archive

import (
	"errors"
	"fmt"
	"time"

	"github.com/zhiduo233/minibackup/internal/cipher"
	"github.com/zhiduo233/minibackup/internal/compress"
)

const (
	magicLen   = 8
	headerLen  = magicLen + 1
	metaLen    = 8 + 4 + 20 // payloadLen, crc, mode/uid/gid/mtime
	chunkSize  = 32 * 1024
	magicPlain = "MINIBK10"
	magicXOR   = "MINIBK_X"
	magicRC4   = "MINIBK_R"

	// MaxPathLen bounds the pathLen field accepted by the reader.
	MaxPathLen = 64 * 1024
)

var (
	// ErrBadMagic means the file does not start with a known archive magic.
	ErrBadMagic = errors.New("not a minibackup archive")
	// ErrCorrupt means an entry is truncated or carries implausible fields,
	// which is also what decrypting with the wrong password looks like.
	ErrCorrupt = errors.New("corrupt archive")
	// ErrChecksumMismatch means a payload's CRC-32 differs from the stored one.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrPasswordRequired means an encrypted archive was used without a password.
	ErrPasswordRequired = errors.New("password required for encrypted archive")

	ErrUnknownCipher      = cipher.ErrUnknownMode
	ErrUnknownCompression = compress.ErrUnknownMode
)

// Kind is the entry type code stored in the archive.
type Kind uint8

const (
	Regular Kind = 1
	Dir     Kind = 2
	Symlink Kind = 3
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "file"
	case Dir:
		return "dir"
	case Symlink:
		return "symlink"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Header is the archive-wide configuration stored up front.
type Header struct {
	Cipher      cipher.Mode
	Compression compress.Mode
}

func (h Header) magic() (string, error) {
	switch h.Cipher {
	case cipher.None:
		return magicPlain, nil
	case cipher.XOR:
		return magicXOR, nil
	case cipher.RC4:
		return magicRC4, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownCipher, h.Cipher)
	}
}

func cipherForMagic(m string) (cipher.Mode, error) {
	switch m {
	case magicPlain:
		return cipher.None, nil
	case magicXOR:
		return cipher.XOR, nil
	case magicRC4:
		return cipher.RC4, nil
	default:
		return cipher.None, fmt.Errorf("%w: magic %q", ErrBadMagic, m)
	}
}

// Entry is one serialized record. Size and CRC describe the stored payload,
// i.e. after compression.
type Entry struct {
	Path    string // slash-separated, relative to the archive root
	Kind    Kind
	Size    uint64
	CRC     uint32
	Mode    uint32 // unix st_mode bits
	UID     uint32
	GID     uint32
	ModTime int64 // seconds since epoch
}

// Time returns ModTime as a time.Time.
func (e Entry) Time() time.Time {
	return time.Unix(e.ModTime, 0)
}
