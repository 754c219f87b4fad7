// Package fileutil holds the small filesystem primitives shared by the
// download and organizer packages: atomic writes, hard-link-or-copy, and
// directory syncs.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PartSuffix marks an in-progress download next to its final name.
const PartSuffix = ".part"

// WriteAtomic streams r into path via "<path>.part", fsyncs, and renames
// into place. The partial file is removed on any failure, so path either
// holds the complete content or does not exist.
func WriteAtomic(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("ensure directory: %w", err)
	}
	part := path + PartSuffix
	out, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(out, r)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(part, path)
	}
	if err != nil {
		_ = os.Remove(part)
		return 0, err
	}
	_ = SyncDir(filepath.Dir(path))
	return written, nil
}

// CopyFile copies src to dst atomically with mode 0o644.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = WriteAtomic(dst, in)
	return err
}

// LinkOrCopy materializes src at dst, preferring a hard link and falling
// back to a copy when linking fails (different filesystems, unsupported).
// An existing dst that already is src is left alone.
func LinkOrCopy(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if dstInfo, err := os.Stat(dst); err == nil {
		if os.SameFile(srcInfo, dstInfo) {
			return nil
		}
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("replace destination: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	return CopyFile(src, dst)
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SyncDir fsyncs a directory so renames inside it survive a crash.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
