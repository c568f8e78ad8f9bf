//go:build !unix

package platform

import "io/fs"

func Owner(fs.FileInfo) (uid, gid uint32) { return 0, 0 }

func RestoreMetadata(string, Metadata, Options) error { return nil }
