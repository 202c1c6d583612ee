package vcs

import "io"

// ObjectStore holds one full copy of a file per (filename, version).
// Copies are byte-exact; nothing is translated on the way in or out.
type ObjectStore interface {
	// Put stores the current bytes of sourcePath under (filename, version),
	// creating the filename's container if needed.
	Put(filename string, version int, sourcePath string) error

	// Get opens the stored snapshot. The caller must close it.
	// Returns an error wrapping ErrNotFound if the snapshot does not exist.
	Get(filename string, version int) (io.ReadCloser, error)

	// Restore writes the stored snapshot over destPath. destPath is replaced
	// atomically and is left alone if the snapshot does not exist.
	Restore(filename string, version int, destPath string) error
}
