package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"

	"vcs-go/internal/vcs"
)

// writeVerified copies r into a temp file beside destPath, checks the temp
// file against the digest of what was read, then renames it into place.
// destPath is either fully written or left as it was.
func writeVerified(destPath string, r io.Reader, perm os.FileMode) (int64, error) {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("%w: creating temp file: %w", vcs.ErrIOFailure, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	source := xxh3.New()
	written, err := io.Copy(tmpFile, io.TeeReader(r, source))
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("%w: writing data: %w", vcs.ErrIOFailure, err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("%w: setting permissions: %w", vcs.ErrIOFailure, err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("%w: closing temp file: %w", vcs.ErrIOFailure, err)
	}

	if err := verifyFile(tmpPath, written, source.Sum64()); err != nil {
		return 0, err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("%w: renaming temp file: %w", vcs.ErrIOFailure, err)
	}

	success = true
	return written, nil
}

// verifyFile re-reads path and compares its length and digest.
func verifyFile(path string, wantSize int64, wantSum uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: reopening temp file: %w", vcs.ErrIOFailure, err)
	}
	defer f.Close()

	h := xxh3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("%w: rereading temp file: %w", vcs.ErrIOFailure, err)
	}
	if n != wantSize {
		return fmt.Errorf("%w: size mismatch: wrote %d bytes, read back %d", vcs.ErrIOFailure, wantSize, n)
	}
	if h.Sum64() != wantSum {
		return fmt.Errorf("%w: digest mismatch after copy", vcs.ErrIOFailure)
	}
	return nil
}

// restoreTo replaces destPath with the bytes of r. An existing destination
// keeps its permission bits; a new one gets 0644. Missing parent
// directories are created.
func restoreTo(destPath string, r io.Reader) error {
	perm := os.FileMode(0644)
	if info, err := os.Stat(destPath); err == nil {
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", vcs.ErrInvalidArgument, destPath)
		}
		perm = info.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("%w: creating destination directory: %w", vcs.ErrIOFailure, err)
	}

	if _, err := writeVerified(destPath, r, perm); err != nil {
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	return nil
}

// openSource opens the working file for a Put.
func openSource(sourcePath string) (*os.File, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: source %s", vcs.ErrNotFound, sourcePath)
		}
		return nil, fmt.Errorf("%w: opening source %s: %w", vcs.ErrIOFailure, sourcePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat source %s: %w", vcs.ErrIOFailure, sourcePath, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", vcs.ErrInvalidArgument, sourcePath)
	}
	return f, nil
}

func checkKey(filename string, version int) error {
	if err := vcs.ValidateFilename(filename); err != nil {
		return err
	}
	if version < 1 {
		return fmt.Errorf("%w: version %d", vcs.ErrInvalidArgument, version)
	}
	return nil
}
