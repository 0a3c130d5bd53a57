package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write encodes the archive to w. Raw entries are copied with their stored
// bytes, CRC and header untouched; fresh entries are compressed.
func (a *Archive) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, e := range a.Entries {
		if err := writeEntry(zw, e); err != nil {
			zw.Close()
			return err
		}
	}
	if a.Comment != "" {
		if err := zw.SetComment(a.Comment); err != nil {
			zw.Close()
			return fmt.Errorf("set comment: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, e *Entry) error {
	if e.file != nil {
		header := e.Header
		dst, err := zw.CreateRaw(&header)
		if err != nil {
			return fmt.Errorf("create %s: %w", e.Header.Name, err)
		}
		src, err := e.file.OpenRaw()
		if err != nil {
			return fmt.Errorf("open raw %s: %w", e.Header.Name, err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			return fmt.Errorf("copy %s: %w", e.Header.Name, err)
		}
		return nil
	}

	header := e.Header
	header.CRC32 = 0
	header.CompressedSize64 = 0
	header.UncompressedSize64 = 0
	dst, err := zw.CreateHeader(&header)
	if err != nil {
		return fmt.Errorf("create %s: %w", e.Header.Name, err)
	}
	if _, err := dst.Write(e.data); err != nil {
		return fmt.Errorf("write %s: %w", e.Header.Name, err)
	}
	return nil
}

// WriteFile writes the archive to a temporary file next to dstPath and
// renames it into place, so a failed write never leaves partial output.
func (a *Archive) WriteFile(dstPath string) error {
	return WriteAtomic(dstPath, a.Write)
}

// WriteAtomic streams fill into a temporary file in the destination
// directory and renames it to dstPath once fill and the flush succeed.
func WriteAtomic(dstPath string, fill func(io.Writer) error) error {
	dir := filepath.Dir(dstPath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dstPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if err := fill(tmp); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}
