package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhiduo233/minibackup/internal/archive"
	"github.com/zhiduo233/minibackup/internal/config"
	"github.com/zhiduo233/minibackup/internal/engine"
	"github.com/zhiduo233/minibackup/internal/filter"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	g := &globalOptions{}
	cmd := newRootCmd(g)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if g.logSink != nil {
		g.logSink.Close()
	}
	return err
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return exitFatal
}

func writeTree(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("AAAAAAAAAA"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "notes.md"), []byte(strings.Repeat("notes ", 300)), 0o600))
	return src
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := writeTree(t)
	dir := t.TempDir()
	arc := filepath.Join(dir, "out.mbk")
	dst := filepath.Join(dir, "restored")

	err := execute(t, "pack", "-q", "--cipher", "rc4", "--password", "secret", "--compression", "rle", "--verify", src, arc)
	require.NoError(t, err)

	err = execute(t, "unpack", "-q", "--password", "secret", "--verify-against", src, arc, dst)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dst, "sub", "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("notes ", 300), string(got))

	info, err := os.Stat(filepath.Join(dst, "sub", "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestPackRequiresPassword(t *testing.T) {
	src := writeTree(t)
	arc := filepath.Join(t.TempDir(), "out.mbk")

	err := execute(t, "pack", "-q", "--cipher", "xor", src, arc)
	require.Error(t, err)
	assert.ErrorIs(t, err, archive.ErrPasswordRequired)
	assert.Equal(t, exitFatal, exitCode(err))
	assert.NoFileExists(t, arc)
}

func TestPackRejectsUnknownCipher(t *testing.T) {
	src := writeTree(t)
	err := execute(t, "pack", "--cipher", "aes", src, filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cipher mode")
}

func TestTamperedArchiveIsPartial(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello world"), 0o644))
	dir := t.TempDir()
	arc := filepath.Join(dir, "out.mbk")

	require.NoError(t, execute(t, "pack", "-q", src, arc))

	data, err := os.ReadFile(arc)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(arc, data, 0o644))

	assert.Equal(t, exitOK, exitCode(execute(t, "list", "-q", arc)))
	assert.Equal(t, exitPartial, exitCode(execute(t, "list", "-q", "--check", arc)))
	assert.Equal(t, exitPartial, exitCode(execute(t, "unpack", "-q", arc, filepath.Join(dir, "dst"))))
}

func TestListCorruptArchiveIsFatal(t *testing.T) {
	arc := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(arc, []byte("not an archive"), 0o644))

	err := execute(t, "list", "-q", arc)
	assert.ErrorIs(t, err, archive.ErrBadMagic)
	assert.Equal(t, exitFatal, exitCode(err))
}

func TestLegacyCommands(t *testing.T) {
	src := writeTree(t)
	dir := t.TempDir()
	backup := filepath.Join(dir, "backup")
	restored := filepath.Join(dir, "restored")

	require.NoError(t, execute(t, "backup", "-q", src, backup))
	require.NoError(t, execute(t, "verify", "-q", backup))
	require.NoError(t, execute(t, "restore", "-q", backup, restored))
	assert.FileExists(t, filepath.Join(restored, "sub", "notes.md"))
	assert.NoFileExists(t, filepath.Join(restored, "index.txt"))

	require.NoError(t, os.WriteFile(filepath.Join(backup, "a.txt"), []byte("changed"), 0o644))
	assert.Equal(t, exitPartial, exitCode(execute(t, "verify", "-q", backup)))
}

func TestFormatListEntry(t *testing.T) {
	e := engine.ListEntry{
		Entry: archive.Entry{
			Path:    "sub/notes.md",
			Kind:    archive.Regular,
			Size:    2048,
			CRC:     0xABCD,
			Mode:    0o100640,
			UID:     1000,
			GID:     100,
			ModTime: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC).Unix(),
		},
		ChecksumOK: true,
	}
	assert.Equal(t, "file    -rw-r-----  1000:100      2.0 KiB 0000ABCD 2024-03-01 12:30 sub/notes.md", formatListEntry(e))

	e.Mode = 0o104755
	assert.Contains(t, formatListEntry(e), " urwxr-xr-x ")
}

func TestFilterFlagsBuild(t *testing.T) {
	var f filterFlags
	cmd := &cobra.Command{Use: "x"}
	f.register(cmd.Flags())
	require.NoError(t, cmd.ParseFlags([]string{
		"--min-size", "1k", "--type", "file", "--uid", "0",
		"--include", "keep.tmp", "--exclude", "*.tmp",
	}))

	maxSize := "1M"
	chain, err := f.build(cmd, config.FilterConfig{MaxSize: &maxSize}, time.Now())
	require.NoError(t, err)

	assert.False(t, chain.Match(filter.Entry{RelPath: "keep.tmp", Size: 512}), "below --min-size")
	assert.False(t, chain.Match(filter.Entry{RelPath: "keep.tmp", Size: 2 << 20}), "above config max_size")
	assert.False(t, chain.Match(filter.Entry{RelPath: "keep.tmp", IsDir: true}), "--type file")
	assert.False(t, chain.Match(filter.Entry{RelPath: "keep.tmp", Size: 4096, UID: 5}), "--uid 0")
	assert.False(t, chain.Match(filter.Entry{RelPath: "x.tmp", Size: 4096}))
	assert.True(t, chain.Match(filter.Entry{RelPath: "keep.tmp", Size: 4096}))
}

func TestFilterFlagsInvalidSize(t *testing.T) {
	var f filterFlags
	cmd := &cobra.Command{Use: "x"}
	f.register(cmd.Flags())
	require.NoError(t, cmd.ParseFlags([]string{"--max-size", "huge"}))

	_, err := f.build(cmd, config.FilterConfig{}, time.Now())
	assert.ErrorContains(t, err, "--max-size")
}

func TestGenDocsMan(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SOURCE_DATE_EPOCH", "1709294400")
	require.NoError(t, execute(t, "gen-docs", "--dir", dir))

	page, err := os.ReadFile(filepath.Join(dir, "minibk-pack.1"))
	require.NoError(t, err)
	for _, want := range []string{`"MINIBK"`, `"Mar 2024"`, `"minibk dev"`, `"minibk manual"`} {
		assert.Contains(t, string(page), want)
	}
	assert.NotContains(t, string(page), "Auto generated by spf13/cobra")
	assert.FileExists(t, filepath.Join(dir, "minibk.1"))
	assert.NoFileExists(t, filepath.Join(dir, "minibk-gen-docs.1"))
}

func TestGenDocsMarkdown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, execute(t, "gen-docs", "--dir", dir, "--format", "markdown"))

	page, err := os.ReadFile(filepath.Join(dir, "minibk_pack.md"))
	require.NoError(t, err)
	assert.NotContains(t, string(page), "Auto generated by spf13/cobra")

	assert.Error(t, execute(t, "gen-docs", "--dir", dir, "--format", "html"))
}

func TestDocsDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	got, err := docsDate("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = docsDate("1709294400", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), got)

	_, err = docsDate("yesterday", now)
	assert.ErrorContains(t, err, "SOURCE_DATE_EPOCH")
}
