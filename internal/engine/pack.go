package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/zhiduo233/minibackup/internal/archive"
	"github.com/zhiduo233/minibackup/internal/cipher"
	"github.com/zhiduo233/minibackup/internal/compress"
	"github.com/zhiduo233/minibackup/internal/event"
	"github.com/zhiduo233/minibackup/internal/filter"
	"github.com/zhiduo233/minibackup/internal/stats"
)

const writeBufferSize = 256 * 1024

// PackConfig describes a pack operation.
type PackConfig struct {
	Src         string
	Archive     string
	Password    []byte
	Cipher      cipher.Mode
	Compression compress.Mode
	Filter      *filter.Chain
	BWLimit     int64 // bytes per second, 0 = unlimited
	Events      chan<- event.Event
	Stats       *stats.Collector
	Logger      *slog.Logger
}

// Pack archives cfg.Src into cfg.Archive. The archive is written under a
// temporary name in the destination directory and renamed into place only
// when every entry has been processed; on a fatal error or cancellation no
// archive is left behind.
func Pack(ctx context.Context, cfg PackConfig) (Result, error) {
	if cfg.Cipher != cipher.None && len(cfg.Password) == 0 {
		return Result{}, archive.ErrPasswordRequired
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	sink := event.Sink(cfg.Events)

	p := &packer{cfg: cfg, sink: sink}

	sink.Emit(event.Event{Type: event.ScanStarted, Path: cfg.Src})
	records, err := Scan(ctx, ScanConfig{
		Root:   cfg.Src,
		Filter: cfg.Filter,
		Logger: cfg.Logger,
		OnSkip: func(r FileRecord) { p.skip(r.RelPath, "filtered") },
	})
	if err != nil {
		return Result{Stats: cfg.Stats.Snapshot()}, err
	}
	var total int64
	for _, r := range records {
		if r.Kind == Regular {
			total += int64(r.Size)
		}
	}
	cfg.Stats.AddEntriesScanned(int64(len(records)))
	cfg.Stats.SetTotals(int64(len(records)), total)
	sink.Emit(event.Event{Type: event.ScanComplete, Total: int64(len(records)), TotalSize: total})

	if err := p.run(ctx, records); err != nil {
		return p.result(), err
	}
	return p.result(), nil
}

type packer struct {
	cfg      PackConfig
	sink     event.Sink
	failures []Failure
}

func (p *packer) result() Result {
	return Result{Stats: p.cfg.Stats.Snapshot(), Failures: p.failures}
}

func (p *packer) run(ctx context.Context, records []FileRecord) (err error) {
	dst, err := filepath.Abs(p.cfg.Archive)
	if err != nil {
		return fmt.Errorf("archive path: %w", err)
	}
	dir := filepath.Dir(dst)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.minibk-tmp", filepath.Base(dst), uuid.New().String()[:8]))

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	tempFiles.add(tmpPath)
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
		tempFiles.remove(tmpPath)
	}()

	bw := bufio.NewWriterSize(throttleWriter(ctx, f, NewBWLimiter(p.cfg.BWLimit)), writeBufferSize)
	aw, err := archive.NewWriter(bw, archive.Header{
		Cipher:      p.cfg.Cipher,
		Compression: p.cfg.Compression,
	}, archive.WriterOptions{Password: p.cfg.Password, SpoolDir: dir})
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if abs, _ := filepath.Abs(rec.AbsPath); abs == dst {
			p.skip(rec.RelPath, "archive being written")
			continue
		}
		if err := p.packOne(aw, rec); err != nil {
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename archive: %w", err)
	}
	p.cfg.Logger.Debug("archive written", "path", dst, "bytes", aw.Written())
	return nil
}

// packOne writes a single record. Problems reading the source are recorded
// as failures; only archive write errors are returned.
func (p *packer) packOne(aw *archive.Writer, rec FileRecord) error {
	p.sink.Emit(event.Event{Type: event.EntryStarted, Path: rec.RelPath, Size: int64(rec.Size)})

	if len(rec.RelPath) > archive.MaxPathLen {
		p.fail(rec.RelPath, fmt.Errorf("path longer than %d bytes", archive.MaxPathLen))
		return nil
	}

	var src *countingReader
	switch rec.Kind {
	case Regular:
		f, err := os.Open(rec.AbsPath)
		if err != nil {
			p.fail(rec.RelPath, err)
			return nil
		}
		defer f.Close()
		src = &countingReader{r: f}
	case Symlink:
		src = &countingReader{r: strings.NewReader(rec.LinkTarget)}
	}

	var (
		sp  *archive.Spool
		err error
	)
	if src != nil {
		sp, err = aw.Stage(src)
	} else {
		sp, err = aw.Stage(nil)
	}
	if err != nil {
		p.fail(rec.RelPath, fmt.Errorf("read: %w", err))
		return nil
	}
	defer sp.Close()

	e, err := aw.Commit(rec.archiveEntry(), sp)
	if err != nil {
		return err
	}

	var raw int64
	if src != nil {
		raw = src.n
	}
	p.cfg.Stats.AddEntriesPacked(1)
	p.cfg.Stats.AddBytesRaw(raw)
	p.cfg.Stats.AddBytesStored(int64(e.Size))
	p.cfg.Logger.Debug("packed", "path", e.Path, "kind", e.Kind, "raw", raw, "stored", e.Size)
	p.sink.Emit(event.Event{Type: event.EntryPacked, Path: e.Path, Size: raw, Stored: int64(e.Size)})
	return nil
}

func (p *packer) skip(path, reason string) {
	p.cfg.Stats.AddEntriesSkipped(1)
	p.cfg.Logger.Debug("pack: entry skipped", "path", path, "reason", reason)
	p.sink.Emit(event.Event{Type: event.EntrySkipped, Path: path})
}

func (p *packer) fail(path string, err error) {
	p.failures = append(p.failures, Failure{Path: path, Err: err})
	p.cfg.Stats.AddEntriesFailed(1)
	p.cfg.Logger.Warn("pack: entry failed", "path", path, "error", err)
	p.sink.Emit(event.Event{Type: event.EntryFailed, Path: path, Error: err})
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
