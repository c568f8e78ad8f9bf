package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhiduo233/minibackup/internal/archive"
	"github.com/zhiduo233/minibackup/internal/event"
	"github.com/zhiduo233/minibackup/internal/platform"
	"github.com/zhiduo233/minibackup/internal/stats"
)

// ErrUnsafePath marks an entry whose path is absolute or escapes the
// destination root.
var ErrUnsafePath = errors.New("unsafe entry path")

const readBufferSize = 256 * 1024

// UnpackConfig describes an unpack operation.
type UnpackConfig struct {
	Archive  string
	Dst      string
	Password []byte
	Preserve platform.Options
	BWLimit  int64
	Events   chan<- event.Event
	Stats    *stats.Collector
	Logger   *slog.Logger
}

// Unpack restores every entry of cfg.Archive beneath cfg.Dst. Checksum
// mismatches are logged and counted; the entry is still materialized.
// Per-entry failures are collected and skipped. A malformed archive stops
// the operation with an error wrapping archive.ErrCorrupt, keeping whatever
// was restored so far.
func Unpack(ctx context.Context, cfg UnpackConfig) (Result, error) {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f, err := os.Open(cfg.Archive)
	if err != nil {
		return Result{}, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	src := bufio.NewReaderSize(throttleReader(ctx, f, NewBWLimiter(cfg.BWLimit)), readBufferSize)
	ar, err := archive.NewReader(src, cfg.Password)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(cfg.Dst, 0o755); err != nil {
		return Result{}, fmt.Errorf("create destination: %w", err)
	}

	u := &unpacker{
		cfg:  cfg,
		ar:   ar,
		sink: event.Sink(cfg.Events),
		buf:  make([]byte, 32*1024),
	}
	err = u.run(ctx)
	u.restoreDirs()
	return u.result(), err
}

type unpacker struct {
	cfg        UnpackConfig
	ar         *archive.Reader
	sink       event.Sink
	buf        []byte
	dirs       []pendingDir
	failures   []Failure
	mismatches []string
}

type pendingDir struct {
	path string
	meta platform.Metadata
}

func (u *unpacker) result() Result {
	return Result{
		Stats:      u.cfg.Stats.Snapshot(),
		Failures:   u.failures,
		Mismatches: u.mismatches,
	}
}

func (u *unpacker) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := u.ar.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		u.sink.Emit(event.Event{Type: event.EntryStarted, Path: e.Path, Stored: int64(e.Size)})

		target, err := safeJoin(u.cfg.Dst, e.Path)
		if err == nil {
			err = checkParents(u.cfg.Dst, target)
		}
		if err != nil {
			u.fail(e.Path, err)
			u.verify(e)
			continue
		}

		var raw int64
		switch e.Kind {
		case archive.Dir:
			err = u.extractDir(target, e)
		case archive.Symlink:
			raw, err = u.extractSymlink(target, e)
		default:
			raw, err = u.extractFile(target, e)
		}
		if err != nil {
			u.fail(e.Path, err)
			u.verify(e)
			continue
		}
		u.verify(e)

		if e.Kind != archive.Dir {
			if err := platform.RestoreMetadata(target, metadataOf(e), u.cfg.Preserve); err != nil {
				u.cfg.Logger.Debug("metadata not restored", "path", e.Path, "error", err)
			}
		}
		u.cfg.Stats.AddEntriesExtracted(1)
		u.cfg.Stats.AddBytesRaw(raw)
		u.cfg.Stats.AddBytesStored(int64(e.Size))
		u.sink.Emit(event.Event{Type: event.EntryExtracted, Path: e.Path, Size: raw, Stored: int64(e.Size)})
	}
}

// verify finishes the current payload and records a checksum mismatch as a
// warning. Read errors surface from the next call to Next.
func (u *unpacker) verify(e archive.Entry) {
	err := u.ar.Verify()
	var ce *archive.ChecksumError
	if errors.As(err, &ce) {
		u.mismatches = append(u.mismatches, e.Path)
		u.cfg.Stats.AddChecksumMismatches(1)
		u.cfg.Logger.Warn("checksum mismatch",
			"path", e.Path, "stored", fmt.Sprintf("%08X", ce.Stored), "computed", fmt.Sprintf("%08X", ce.Computed))
		u.sink.Emit(event.Event{Type: event.ChecksumMismatch, Path: e.Path, Error: err})
	}
}

func (u *unpacker) extractDir(target string, e archive.Entry) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}
	u.dirs = append(u.dirs, pendingDir{path: target, meta: metadataOf(e)})
	u.cfg.Stats.AddDirsCreated(1)
	u.sink.Emit(event.Event{Type: event.DirCreated, Path: e.Path})
	return nil
}

func (u *unpacker) extractSymlink(target string, e archive.Entry) (int64, error) {
	rc, err := u.ar.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	link, err := io.ReadAll(io.LimitReader(rc, archive.MaxPathLen+1))
	if err != nil {
		return 0, fmt.Errorf("read link target: %w", err)
	}
	if len(link) == 0 || len(link) > archive.MaxPathLen {
		return 0, fmt.Errorf("link target length %d out of range", len(link))
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	if err := removeExisting(target); err != nil {
		return 0, err
	}
	if err := os.Symlink(string(link), target); err != nil {
		return 0, err
	}
	u.cfg.Stats.AddSymlinksCreated(1)
	u.sink.Emit(event.Event{Type: event.SymlinkCreated, Path: e.Path})
	return int64(len(link)), nil
}

func (u *unpacker) extractFile(target string, e archive.Entry) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return 0, err
		}
	}

	rc, err := u.ar.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	perm := os.FileMode(0o600)
	if !u.cfg.Preserve.Mode {
		perm = 0o666
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.CopyBuffer(out, rc, u.buf)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// restoreDirs applies directory metadata deepest first, after all children
// exist, so creating entries does not disturb restored mtimes.
func (u *unpacker) restoreDirs() {
	for i := len(u.dirs) - 1; i >= 0; i-- {
		d := u.dirs[i]
		if err := platform.RestoreMetadata(d.path, d.meta, u.cfg.Preserve); err != nil {
			u.cfg.Logger.Debug("metadata not restored", "path", d.path, "error", err)
		}
	}
}

func (u *unpacker) fail(path string, err error) {
	u.failures = append(u.failures, Failure{Path: path, Err: err})
	u.cfg.Stats.AddEntriesFailed(1)
	u.cfg.Logger.Warn("unpack: entry failed", "path", path, "error", err)
	u.sink.Emit(event.Event{Type: event.EntryFailed, Path: path, Error: err})
}

func metadataOf(e archive.Entry) platform.Metadata {
	return platform.Metadata{Mode: e.Mode, UID: e.UID, GID: e.GID, ModTime: e.Time()}
}

// safeJoin resolves an archive path beneath root, rejecting absolute paths
// and any path that climbs out of root.
func safeJoin(root, rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	return filepath.Join(root, local), nil
}

// removeExisting clears the way for a symlink. Directories are left alone
// and reported.
func removeExisting(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s exists and is a directory", path)
	}
	return os.Remove(path)
}

// checkParents rejects a target whose existing ancestors below root include
// a symlink, so an earlier entry cannot redirect a later one outside root.
func checkParents(root, target string) error {
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil || rel == "." {
		return err
	}
	cur := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s traverses symlink %s", ErrUnsafePath, target, cur)
		}
	}
	return nil
}
