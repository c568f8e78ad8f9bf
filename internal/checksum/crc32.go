// Package checksum computes the CRC-32 values stored in archive entries and
// in the legacy index.txt sidecar.
package checksum

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
)

// Sum returns the reflected CRC-32 (polynomial 0xEDB88320) of data.
// Sum(nil) is 0. It is the one-shot form of New; the archive and legacy
// paths stream through New and File instead.
func Sum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// New returns a streaming CRC-32 hash. Feeding it the same bytes in any
// chunking yields the same value as Sum.
func New() hash.Hash32 {
	return crc32.NewIEEE()
}

// Hex formats a checksum as 8 uppercase hex digits, zero padded.
func Hex(sum uint32) string {
	return fmt.Sprintf("%08X", sum)
}

// File streams the file at path and returns its CRC-32 as a hex string.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return Hex(h.Sum32()), nil
}
