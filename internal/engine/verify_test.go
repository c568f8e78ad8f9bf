package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiduo233/minibackup/internal/cipher"
	"github.com/zhiduo233/minibackup/internal/compress"
	"github.com/zhiduo233/minibackup/internal/event"
	"github.com/zhiduo233/minibackup/internal/filter"
	"github.com/zhiduo233/minibackup/internal/stats"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	h1, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, h1, 64)

	path2 := filepath.Join(dir, "test2.txt")
	require.NoError(t, os.WriteFile(path2, []byte("hello world"), 0o644))
	h2, err := HashFile(path2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	path3 := filepath.Join(dir, "test3.txt")
	require.NoError(t, os.WriteFile(path3, []byte("different content"), 0o644))
	h3, err := HashFile(path3)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	_, err = HashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestVerify_AfterUnpack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	createTestTree(t, src)
	arc := filepath.Join(dir, "v.mbk")
	dst := filepath.Join(dir, "dst")

	packTree(t, src, arc, cipher.RC4, compress.LZ4, "pw")
	unpackTree(t, arc, dst, "pw")

	collector := stats.NewCollector()
	rec := recordEvents(t)
	vr, err := Verify(context.Background(), VerifyConfig{
		SrcRoot: src,
		DstRoot: dst,
		Workers: 2,
		Stats:   collector,
		Events:  rec.ch,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), vr.Verified)
	assert.Zero(t, vr.Failed)
	assert.Empty(t, vr.Errors)
	assert.Equal(t, int64(4), collector.Snapshot().FilesVerified)
	assert.Equal(t, 4, rec.count(event.VerifyOK))
}

func TestVerify_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "file.txt"), []byte("correct"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "file.txt"), []byte("corrupted"), 0o644))

	vr, err := Verify(context.Background(), VerifyConfig{SrcRoot: src, DstRoot: dst, Workers: 1})
	require.NoError(t, err)
	assert.Zero(t, vr.Verified)
	assert.Equal(t, int64(1), vr.Failed)
	require.Len(t, vr.Errors, 1)
	assert.Equal(t, "file.txt", vr.Errors[0].Path)
	assert.NotEqual(t, vr.Errors[0].SrcHash, vr.Errors[0].DstHash)
}

func TestVerify_ExtraDestinationFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "extra.txt"), []byte("x"), 0o644))

	vr, err := Verify(context.Background(), VerifyConfig{SrcRoot: src, DstRoot: dst})
	require.NoError(t, err)
	assert.Equal(t, int64(1), vr.Verified)
}

func TestVerify_Filtered(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	createTestTree(t, src)
	createTestTree(t, dst)
	require.NoError(t, os.WriteFile(filepath.Join(dst, "big.bin"), []byte("broken"), 0o644))

	vr, err := Verify(context.Background(), VerifyConfig{
		SrcRoot: src,
		DstRoot: dst,
		Filter:  filter.NewChain(filter.Options{NameContains: ".txt"}),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), vr.Verified)
	assert.Zero(t, vr.Failed)
}

func TestVerify_SingleFileSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "one.txt")
	require.NoError(t, os.WriteFile(file, []byte("solo"), 0o644))
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "one.txt"), []byte("solo"), 0o644))

	vr, err := Verify(context.Background(), VerifyConfig{SrcRoot: file, DstRoot: dst})
	require.NoError(t, err)
	assert.Equal(t, int64(1), vr.Verified)
}
