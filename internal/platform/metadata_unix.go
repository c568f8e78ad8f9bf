//go:build unix

package platform

import (
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Owner returns the uid and gid recorded in fi, or zeros when the
// platform stat structure is unavailable.
func Owner(fi fs.FileInfo) (uid, gid uint32) {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return st.Uid, st.Gid
	}
	return 0, 0
}

// RestoreMetadata applies meta to path without following a final symlink.
// Ownership is best effort and never reported; mode is skipped for
// symlinks, whose permissions cannot be changed on most systems.
func RestoreMetadata(path string, meta Metadata, opts Options) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	isLink := fi.Mode()&fs.ModeSymlink != 0

	// Owner first: chown clears setuid/setgid bits.
	if opts.Owner {
		//nolint:errcheck // best-effort ownership; may fail without root
		_ = unix.Lchown(path, int(meta.UID), int(meta.GID))
	}

	if opts.Mode && !isLink {
		if err := unix.Fchmodat(unix.AT_FDCWD, path, meta.Mode&0o7777, 0); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
	}

	if opts.Times && !meta.ModTime.IsZero() {
		ts := unix.NsecToTimespec(meta.ModTime.UnixNano())
		times := []unix.Timespec{ts, ts}
		if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, times, unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return fmt.Errorf("utimensat %s: %w", path, err)
		}
	}
	return nil
}
