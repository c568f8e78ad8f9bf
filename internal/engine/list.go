package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zhiduo233/minibackup/internal/archive"
)

// ListEntry is one archive entry as reported by List.
type ListEntry struct {
	archive.Entry
	ChecksumOK bool
}

// ListResult holds the archive header and its entries in archive order.
type ListResult struct {
	Header  archive.Header
	Entries []ListEntry
}

// Mismatches counts entries whose checksum failed.
func (r ListResult) Mismatches() int {
	var n int
	for _, e := range r.Entries {
		if !e.ChecksumOK {
			n++
		}
	}
	return n
}

// List reads the archive at path without materializing anything, checking
// every payload's CRC-32 on the way. Entries read before a fatal error are
// returned along with it.
func List(ctx context.Context, path string, password []byte) (ListResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ListResult{}, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	ar, err := archive.NewReader(bufio.NewReaderSize(f, readBufferSize), password)
	if err != nil {
		return ListResult{}, err
	}
	res := ListResult{Header: ar.Header()}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e, err := ar.Next()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		err = ar.Verify()
		if err != nil && !errors.Is(err, archive.ErrChecksumMismatch) {
			return res, err
		}
		res.Entries = append(res.Entries, ListEntry{Entry: e, ChecksumOK: err == nil})
	}
}
