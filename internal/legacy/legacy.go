// Package legacy implements the plain-copy backup mode: the source tree is
// copied verbatim and an index.txt sidecar records "relPath|CRC32HEX" for
// every regular file so the copy can be verified later.
package legacy

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

	"github.com/google/uuid"

	"github.com/zhiduo233/minibackup/internal/checksum"
)

// IndexFile is the sidecar written at the root of a backup directory.
const IndexFile = "index.txt"

var (
	// ErrSourceNotFound is returned when the backup source does not exist.
	ErrSourceNotFound = errors.New("source not found")
	// ErrNoIndex is returned by Verify when the backup has no index file.
	ErrNoIndex = errors.New("index.txt not found")
)

// Failure is a file that could not be copied.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string { return f.Path + ": " + f.Err.Error() }

func (f Failure) Unwrap() error { return f.Err }

// Result counts what a Backup or Restore did.
type Result struct {
	Copied   int
	Dirs     int
	Symlinks int
	Failures []Failure
}

// Backup copies src (a file or a directory tree) into dest and writes
// dest/index.txt. A single file is stored under its base name.
func Backup(ctx context.Context, src, dest string) (Result, error) {
	log := slog.Default()
	info, err := os.Lstat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: %s", ErrSourceNotFound, src)
	}
	if err != nil {
		return Result{}, fmt.Errorf("source: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Result{}, fmt.Errorf("create destination: %w", err)
	}

	idx, err := newIndexWriter(dest)
	if err != nil {
		return Result{}, err
	}
	defer idx.abort()

	var res Result
	copyOne := func(path, rel string) {
		sum, err := copyFile(path, filepath.Join(dest, rel))
		if err != nil {
			res.Failures = append(res.Failures, Failure{Path: filepath.ToSlash(rel), Err: err})
			log.Warn("backup: copy failed", "path", rel, "error", err)
			return
		}
		idx.add(filepath.ToSlash(rel), sum)
		res.Copied++
		log.Debug("backup: copied", "path", rel, "crc", checksum.Hex(sum))
	}

	switch {
	case info.Mode().IsRegular():
		copyOne(src, filepath.Base(src))
	case info.IsDir():
		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if path == src {
				return walkErr
			}
			rel, _ := filepath.Rel(src, path)
			if walkErr != nil {
				res.Failures = append(res.Failures, Failure{Path: filepath.ToSlash(rel), Err: walkErr})
				return nil
			}
			switch {
			case d.IsDir():
				if err := os.MkdirAll(filepath.Join(dest, rel), 0o755); err != nil {
					res.Failures = append(res.Failures, Failure{Path: filepath.ToSlash(rel), Err: err})
					return filepath.SkipDir
				}
				res.Dirs++
			case d.Type()&fs.ModeSymlink != 0:
				if err := copySymlink(path, filepath.Join(dest, rel)); err != nil {
					res.Failures = append(res.Failures, Failure{Path: filepath.ToSlash(rel), Err: err})
					return nil
				}
				res.Symlinks++
			case d.Type().IsRegular():
				copyOne(path, rel)
			}
			return nil
		})
		if err != nil {
			return res, err
		}
	default:
		return Result{}, fmt.Errorf("source %s is neither a file nor a directory", src)
	}

	if err := idx.commit(); err != nil {
		return res, err
	}
	log.Info("backup complete", "copied", res.Copied, "failed", len(res.Failures))
	return res, nil
}

// Restore copies everything in backupDir except the root index file into
// dest.
func Restore(ctx context.Context, backupDir, dest string) (Result, error) {
	log := slog.Default()
	if _, err := os.Stat(backupDir); err != nil {
		return Result{}, fmt.Errorf("backup directory: %w", err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Result{}, fmt.Errorf("create destination: %w", err)
	}

	var res Result
	err := filepath.WalkDir(backupDir, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == backupDir {
			return walkErr
		}
		rel, _ := filepath.Rel(backupDir, path)
		fail := func(err error) {
			res.Failures = append(res.Failures, Failure{Path: filepath.ToSlash(rel), Err: err})
			log.Warn("restore: copy failed", "path", rel, "error", err)
		}
		if walkErr != nil {
			fail(walkErr)
			return nil
		}
		if rel == IndexFile {
			return nil
		}
		target := filepath.Join(dest, rel)
		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				fail(err)
				return filepath.SkipDir
			}
			res.Dirs++
		case d.Type()&fs.ModeSymlink != 0:
			if err := copySymlink(path, target); err != nil {
				fail(err)
				return nil
			}
			res.Symlinks++
		case d.Type().IsRegular():
			if _, err := copyFile(path, target); err != nil {
				fail(err)
				return nil
			}
			res.Copied++
		}
		return nil
	})
	return res, err
}

// Report is the outcome of Verify.
type Report struct {
	Checked   int
	Missing   []string
	Tampered  []string
	Malformed int // unparsable or unsafe index lines
}

// OK reports whether every indexed file is present and unchanged.
func (r Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Tampered) == 0
}

// Verify re-checks every line of backupDir/index.txt against the files on
// disk.
func Verify(ctx context.Context, backupDir string) (Report, error) {
	f, err := os.Open(filepath.Join(backupDir, IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Report{}, ErrNoIndex
	}
	if err != nil {
		return Report{}, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	var rep Report
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		rel, want, ok := cutLast(line, '|')
		if !ok || !filepath.IsLocal(filepath.FromSlash(rel)) {
			rep.Malformed++
			continue
		}

		rep.Checked++
		got, err := checksum.File(filepath.Join(backupDir, filepath.FromSlash(rel)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			rep.Missing = append(rep.Missing, rel)
		case err != nil:
			rep.Tampered = append(rep.Tampered, rel)
		case !strings.EqualFold(got, want):
			rep.Tampered = append(rep.Tampered, rel)
		}
	}
	if err := sc.Err(); err != nil {
		return rep, fmt.Errorf("read index: %w", err)
	}
	return rep, nil
}

func cutLast(s string, sep byte) (before, after string, ok bool) {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// copyFile copies src to dst through a temporary file in dst's directory,
// returning the CRC-32 of the copied bytes.
func copyFile(src, dst string) (uint32, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	tmp := tempName(dst)
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	h := checksum.New()
	_, err = io.CopyBuffer(io.MultiWriter(out, h), in, make([]byte, 32*1024))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return h.Sum32(), nil
}

func copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	_ = os.Remove(dst)
	return os.Symlink(target, dst)
}

func tempName(path string) string {
	return filepath.Join(filepath.Dir(path),
		fmt.Sprintf(".%s.%s.minibk-tmp", filepath.Base(path), uuid.New().String()[:8]))
}

// indexWriter accumulates index lines in a temporary file that replaces
// index.txt only on commit.
type indexWriter struct {
	f    *os.File
	w    *bufio.Writer
	path string
	done bool
}

func newIndexWriter(dir string) (*indexWriter, error) {
	path := filepath.Join(dir, IndexFile)
	f, err := os.OpenFile(tempName(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &indexWriter{f: f, w: bufio.NewWriter(f), path: path}, nil
}

func (iw *indexWriter) add(rel string, sum uint32) {
	fmt.Fprintf(iw.w, "%s|%s\n", rel, checksum.Hex(sum))
}

func (iw *indexWriter) commit() error {
	if err := iw.w.Flush(); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := iw.f.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(iw.f.Name(), iw.path); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	iw.done = true
	return nil
}

func (iw *indexWriter) abort() {
	if iw.done {
		return
	}
	iw.f.Close()
	os.Remove(iw.f.Name())
}
