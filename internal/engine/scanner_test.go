package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiduo233/minibackup/internal/filter"
)

func relPaths(records []FileRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.RelPath)
	}
	return out
}

func scanTree(t *testing.T, root string, opts filter.Options) []FileRecord {
	t.Helper()
	records, err := Scan(context.Background(), ScanConfig{Root: root, Filter: filter.NewChain(opts)})
	require.NoError(t, err)
	return records
}

func TestScan_MissingRoot(t *testing.T) {
	records, err := Scan(context.Background(), ScanConfig{Root: filepath.Join(t.TempDir(), "nope")})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestScan_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o640))

	records, err := Scan(context.Background(), ScanConfig{Root: path})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "single.txt", rec.RelPath)
	assert.Equal(t, path, rec.AbsPath)
	assert.Equal(t, Regular, rec.Kind)
	assert.Equal(t, uint64(5), rec.Size)
	assert.Equal(t, uint32(0o100640), rec.Mode)
	assert.Equal(t, uint32(os.Getuid()), rec.UID)
}

func TestScan_TreeSortedAndClassified(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root)

	records, err := Scan(context.Background(), ScanConfig{Root: root})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"big.bin",
		"link.txt",
		"root.txt",
		"sub",
		"sub/deep",
		"sub/deep/leaf.txt",
		"sub/mid.txt",
	}, relPaths(records))

	byPath := make(map[string]FileRecord)
	for _, r := range records {
		byPath[r.RelPath] = r
	}
	assert.Equal(t, Regular, byPath["big.bin"].Kind)
	assert.Equal(t, uint64(320000), byPath["big.bin"].Size)
	assert.Equal(t, Dir, byPath["sub"].Kind)
	assert.Zero(t, byPath["sub"].Size)

	link := byPath["link.txt"]
	assert.Equal(t, Symlink, link.Kind)
	assert.Equal(t, "root.txt", link.LinkTarget)
	assert.Equal(t, uint64(len("root.txt")), link.Size)
}

func TestScan_Filters(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root)

	tests := []struct {
		name string
		opts filter.Options
		want []string
	}{
		{
			name: "min size keeps dirs and symlinks",
			opts: filter.Options{MinSize: 1000},
			want: []string{"big.bin", "link.txt", "sub", "sub/deep"},
		},
		{
			name: "max size",
			opts: filter.Options{MaxSize: 18},
			want: []string{"link.txt", "root.txt", "sub", "sub/deep", "sub/deep/leaf.txt"},
		},
		{
			name: "regular only",
			opts: filter.Options{Type: filter.RegularOnly},
			want: []string{"big.bin", "root.txt", "sub/deep/leaf.txt", "sub/mid.txt"},
		},
		{
			name: "dirs only",
			opts: filter.Options{Type: filter.DirOnly},
			want: []string{"sub", "sub/deep"},
		},
		{
			name: "symlinks only",
			opts: filter.Options{Type: filter.SymlinkOnly},
			want: []string{"link.txt"},
		},
		{
			name: "name contains still walks into non-matching dirs",
			opts: filter.Options{NameContains: "leaf"},
			want: []string{"sub/deep/leaf.txt"},
		},
		{
			name: "path contains",
			opts: filter.Options{PathContains: "sub/"},
			want: []string{"sub/deep", "sub/deep/leaf.txt", "sub/mid.txt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relPaths(scanTree(t, root, tt.opts)))
		})
	}
}

func TestScan_NotOlderThan(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root)

	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "root.txt"), old, old))
	require.NoError(t, os.Chtimes(filepath.Join(root, "sub"), old, old))

	bound := filter.NotOlderThan(time.Now(), 7*24*time.Hour)
	got := relPaths(scanTree(t, root, filter.Options{NotOlderThan: bound}))
	assert.NotContains(t, got, "root.txt")
	assert.Contains(t, got, "sub", "directories are never excluded by age")
	assert.Contains(t, got, "big.bin")
}

func TestScan_OwnerFilter(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root)

	other := uint32(os.Getuid() + 1)
	got := relPaths(scanTree(t, root, filter.Options{OwnerUID: &other}))
	assert.Equal(t, []string{"sub", "sub/deep"}, got)

	me := uint32(os.Getuid())
	assert.Len(t, scanTree(t, root, filter.Options{OwnerUID: &me}), 7)
}

func TestScan_ExcludePatternPrunes(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root)

	chain := filter.NewChain(filter.Options{})
	require.NoError(t, chain.AddExclude("sub/"))
	require.NoError(t, chain.AddExclude("*.bin"))

	records, err := Scan(context.Background(), ScanConfig{Root: root, Filter: chain})
	require.NoError(t, err)
	assert.Equal(t, []string{"link.txt", "root.txt"}, relPaths(records))
}

func TestScan_Cancelled(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Scan(ctx, ScanConfig{Root: root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_SymlinkRootIsFollowed(t *testing.T) {
	dir := t.TempDir()
	realDir := filepath.Join(dir, "real")
	createTestTree(t, realDir)
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(realDir, link))

	records := scanTree(t, link, filter.Options{})
	assert.Equal(t, []string{
		"big.bin", "link.txt", "root.txt", "sub", "sub/deep", "sub/deep/leaf.txt", "sub/mid.txt",
	}, relPaths(records))

	for _, r := range records {
		if r.RelPath == "link.txt" {
			assert.Equal(t, Symlink, r.Kind, "symlinks below the root are not followed")
		}
	}
}

func TestScan_SymlinkRootToFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))
	link := filepath.Join(dir, "alias.txt")
	require.NoError(t, os.Symlink(target, link))

	records := scanTree(t, link, filter.Options{})
	require.Len(t, records, 1)
	assert.Equal(t, "alias.txt", records[0].RelPath)
	assert.Equal(t, Regular, records[0].Kind)
	assert.Equal(t, uint64(5), records[0].Size)
}

func TestScan_DanglingSymlinkRoot(t *testing.T) {
	link := filepath.Join(t.TempDir(), "dangling")
	require.NoError(t, os.Symlink("nowhere", link))

	records, err := Scan(context.Background(), ScanConfig{Root: link})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestScan_OnSkipReportsDroppedEntries(t *testing.T) {
	root := t.TempDir()
	createTestTree(t, root)

	chain := filter.NewChain(filter.Options{})
	require.NoError(t, chain.AddExclude("sub/"))
	require.NoError(t, chain.AddExclude("*.bin"))

	var skipped []string
	records, err := Scan(context.Background(), ScanConfig{
		Root:   root,
		Filter: chain,
		OnSkip: func(r FileRecord) { skipped = append(skipped, r.RelPath) },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"link.txt", "root.txt"}, relPaths(records))
	assert.Equal(t, []string{"big.bin", "sub"}, skipped)
}
