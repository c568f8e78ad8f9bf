package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/zhiduo233/minibackup/internal/event"
	"github.com/zhiduo233/minibackup/internal/filter"
	"github.com/zhiduo233/minibackup/internal/platform"
	"github.com/zhiduo233/minibackup/internal/stats"
)

// VerifyConfig controls the post-unpack comparison of a restored tree with
// its source.
type VerifyConfig struct {
	SrcRoot string
	DstRoot string
	Workers int
	Filter  *filter.Chain
	Events  chan<- event.Event
	Stats   *stats.Collector
}

// VerifyResult holds the outcome of a verification pass.
type VerifyResult struct {
	Verified int64
	Failed   int64
	Errors   []VerifyError
}

// VerifyError records a single file whose digests differ or could not be
// computed.
type VerifyError struct {
	Path    string
	SrcHash string
	DstHash string
	Err     error
}

// HashFile returns the hex BLAKE3 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, 32*1024)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify walks the restored tree and compares BLAKE3 digests against the
// source for every regular file present in both. SrcRoot may be a single
// file, in which case DstRoot is expected to hold it under its base name.
func Verify(ctx context.Context, cfg VerifyConfig) (VerifyResult, error) {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	sink := event.Sink(cfg.Events)
	sink.Emit(event.Event{Type: event.VerifyStarted, Path: cfg.DstRoot})

	srcOf, files, err := collectVerifyFiles(ctx, cfg)
	if err != nil {
		return VerifyResult{}, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	var (
		mu     sync.Mutex
		result VerifyResult
		wg     sync.WaitGroup
	)
	record := func(ve *VerifyError, rel string) {
		mu.Lock()
		defer mu.Unlock()
		if ve == nil {
			result.Verified++
			cfg.Stats.AddFilesVerified(1)
			sink.Emit(event.Event{Type: event.VerifyOK, Path: rel})
			return
		}
		result.Failed++
		result.Errors = append(result.Errors, *ve)
		cfg.Stats.AddFilesVerifyFailed(1)
		sink.Emit(event.Event{Type: event.VerifyFailed, Path: rel, Error: ve.Err})
	}

	tasks := make(chan string, workers*2)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range tasks {
				if ctx.Err() != nil {
					continue
				}
				record(compareFile(srcOf(rel), filepath.Join(cfg.DstRoot, filepath.FromSlash(rel)), rel), rel)
			}
		}()
	}

feed:
	for _, rel := range files {
		select {
		case <-ctx.Done():
			break feed
		case tasks <- rel:
		}
	}
	close(tasks)
	wg.Wait()

	return result, ctx.Err()
}

func compareFile(srcPath, dstPath, rel string) *VerifyError {
	srcHash, err := HashFile(srcPath)
	if err != nil {
		return &VerifyError{Path: rel, SrcHash: "error", DstHash: "n/a", Err: err}
	}
	dstHash, err := HashFile(dstPath)
	if err != nil {
		return &VerifyError{Path: rel, SrcHash: srcHash, DstHash: "error", Err: err}
	}
	if srcHash != dstHash {
		return &VerifyError{Path: rel, SrcHash: srcHash, DstHash: dstHash}
	}
	return nil
}

// collectVerifyFiles lists the regular files under DstRoot that pass the
// filter and exist in the source, returning a mapping to source paths.
func collectVerifyFiles(ctx context.Context, cfg VerifyConfig) (func(string) string, []string, error) {
	srcInfo, err := os.Stat(cfg.SrcRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("source: %w", err)
	}
	if !srcInfo.IsDir() {
		srcOf := func(string) string { return cfg.SrcRoot }
		return srcOf, []string{filepath.Base(cfg.SrcRoot)}, nil
	}

	srcOf := func(rel string) string { return filepath.Join(cfg.SrcRoot, filepath.FromSlash(rel)) }
	var files []string
	err = filepath.WalkDir(cfg.DstRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(cfg.DstRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if !cfg.Filter.Empty() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			e := filter.Entry{RelPath: rel, Size: uint64(info.Size()), ModTime: info.ModTime().Unix()}
			e.UID, _ = platform.Owner(info)
			if !cfg.Filter.Match(e) {
				return nil
			}
		}

		if _, err := os.Lstat(srcOf(rel)); err != nil {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return srcOf, files, err
}
