package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/zhiduo233/minibackup/internal/filter"
	"github.com/zhiduo233/minibackup/internal/platform"
)

const (
	defaultFileMode = 0o100644
	defaultDirMode  = 0o040755
	defaultLinkMode = 0o120777
)

// ScanConfig controls Scan.
type ScanConfig struct {
	Root   string
	Filter *filter.Chain
	Logger *slog.Logger
	// OnSkip, if set, is called for each entry the filter drops. A pruned
	// directory is reported once; nothing beneath it is visited.
	OnSkip func(FileRecord)
}

func (cfg ScanConfig) skip(rec FileRecord) {
	if cfg.OnSkip != nil {
		cfg.OnSkip(rec)
	}
}

// Scan enumerates Root, following Root itself if it is a symlink. A missing
// root yields no records and no error; a single file yields one record
// named by its base name; a directory is walked recursively without
// emitting the root itself. Entries that are neither regular files,
// directories nor symlinks are skipped. Records are returned sorted by
// RelPath.
func Scan(ctx context.Context, cfg ScanConfig) ([]FileRecord, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// The root itself is followed; entries below it are not.
	rootInfo, err := os.Stat(cfg.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	if !rootInfo.IsDir() {
		rec := newRecord(cfg.Root, filepath.Base(cfg.Root), rootInfo)
		if rec.Kind == Other {
			return nil, nil
		}
		if !cfg.Filter.Match(rec.filterEntry()) {
			cfg.skip(rec)
			return nil, nil
		}
		return []FileRecord{rec}, nil
	}

	root := cfg.Root
	if li, err := os.Lstat(root); err == nil && li.Mode()&fs.ModeSymlink != 0 {
		if root, err = filepath.EvalSymlinks(root); err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
	}

	var records []FileRecord
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			log.Warn("scan: skipping unreadable entry", "path", path, "error", walkErr)
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() && cfg.Filter.PruneDir(rel) {
			cfg.skip(FileRecord{RelPath: rel, AbsPath: path, Kind: Dir})
			return filepath.SkipDir
		}

		var rec FileRecord
		if info, infoErr := d.Info(); infoErr != nil {
			log.Debug("scan: metadata unavailable", "path", rel, "error", infoErr)
			rec = fallbackRecord(path, rel, d)
		} else {
			rec = newRecord(path, rel, info)
		}
		if rec.Kind == Other {
			return nil
		}
		if cfg.Filter.Match(rec.filterEntry()) {
			records = append(records, rec)
		} else {
			cfg.skip(rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].RelPath < records[j].RelPath
	})
	return records, nil
}

func newRecord(path, rel string, info fs.FileInfo) FileRecord {
	rec := FileRecord{RelPath: rel, AbsPath: path}

	mode := info.Mode()
	switch {
	case mode&fs.ModeSymlink != 0:
		rec.Kind = Symlink
	case mode.IsDir():
		rec.Kind = Dir
	case mode.IsRegular():
		rec.Kind = Regular
	default:
		return rec
	}

	rec.Mode = platform.UnixMode(mode)
	rec.UID, rec.GID = platform.Owner(info)
	rec.ModTime = info.ModTime().Unix()

	switch rec.Kind {
	case Regular:
		rec.Size = uint64(info.Size())
	case Symlink:
		rec.readLink()
	}
	return rec
}

// fallbackRecord classifies an entry whose metadata could not be read. Size
// and mtime stay zero and the mode takes a default for the kind.
func fallbackRecord(path, rel string, d fs.DirEntry) FileRecord {
	rec := FileRecord{RelPath: rel, AbsPath: path}
	t := d.Type()
	switch {
	case t&fs.ModeSymlink != 0:
		rec.Kind, rec.Mode = Symlink, defaultLinkMode
		rec.readLink()
	case t.IsDir():
		rec.Kind, rec.Mode = Dir, defaultDirMode
	case t.IsRegular():
		rec.Kind, rec.Mode = Regular, defaultFileMode
	}
	return rec
}

func (r *FileRecord) readLink() {
	if target, err := os.Readlink(r.AbsPath); err == nil {
		r.LinkTarget = target
		r.Size = uint64(len(target))
	}
}
