package organizer

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"trawl/internal/fileutil"
)

// ArchiveResult describes a written archive.
type ArchiveResult struct {
	Path  string `json:"path"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

// Archive writes a zip of every regular file under outdir to dest. Hidden
// files and directories, partial downloads, and dest itself are skipped.
// The zip is assembled in a temp file next to dest and renamed into place.
func Archive(outdir, dest string) (ArchiveResult, error) {
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return ArchiveResult{}, err
	}
	if err := os.MkdirAll(filepath.Dir(destAbs), 0o755); err != nil {
		return ArchiveResult{}, fmt.Errorf("ensure archive directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destAbs), ".trawl-archive-*.tmp")
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("create archive temp: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	result := ArchiveResult{Path: destAbs}
	zw := zip.NewWriter(tmp)
	walkErr := filepath.WalkDir(outdir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != outdir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || strings.HasSuffix(name, fileutil.PartSuffix) {
			return nil
		}
		if abs, absErr := filepath.Abs(path); absErr == nil && abs == destAbs {
			return nil
		}
		rel, err := filepath.Rel(outdir, path)
		if err != nil {
			return err
		}
		n, err := addZipEntry(zw, path, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		result.Files++
		result.Bytes += n
		return nil
	})
	if walkErr != nil {
		return ArchiveResult{}, fmt.Errorf("archive %s: %w", outdir, walkErr)
	}
	if err := zw.Close(); err != nil {
		return ArchiveResult{}, fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return ArchiveResult{}, err
	}
	if err := tmp.Close(); err != nil {
		return ArchiveResult{}, err
	}
	if err := os.Rename(tmpPath, destAbs); err != nil {
		return ArchiveResult{}, fmt.Errorf("commit archive: %w", err)
	}
	committed = true
	return result, nil
}

func addZipEntry(zw *zip.Writer, path, name string) (int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = name
	// Audio is already compressed.
	header.Method = zip.Store
	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	return io.Copy(w, in)
}
