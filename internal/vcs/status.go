package vcs

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// FileStatus compares a working copy with its latest snapshot.
type FileStatus struct {
	Filename string
	Latest   int
	Missing  bool // working copy does not exist
	Modified bool // working copy differs from the latest snapshot
}

// Status reports whether the working copy of filename differs from its
// latest version. Content is compared by xxh3 digest; recorded fingerprints
// carry a time component and cannot be used for this.
func (m *VersionManager) Status(filename string) (*FileStatus, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	latest := m.ledger.Latest(filename)
	if latest == 0 {
		return nil, fmt.Errorf("%w: no versions found for %s", ErrNotFound, filename)
	}

	status := &FileStatus{Filename: filename, Latest: latest}

	working, err := os.Open(m.WorkingPath(filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			status.Missing = true
			status.Modified = true
			return status, nil
		}
		return nil, fmt.Errorf("%w: opening working copy: %w", ErrIOFailure, err)
	}
	defer working.Close()

	workingSum, workingSize, err := digest(working)
	if err != nil {
		return nil, fmt.Errorf("%w: reading working copy: %w", ErrIOFailure, err)
	}

	stored, err := m.store.Get(filename, latest)
	if err != nil {
		return nil, fmt.Errorf("opening %s version %d: %w", filename, latest, err)
	}
	defer stored.Close()

	storedSum, storedSize, err := digest(stored)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s version %d: %w", ErrIOFailure, filename, latest, err)
	}

	status.Modified = workingSize != storedSize || workingSum != storedSum
	m.logger.Debug("status computed", "file", filename, "latest", latest, "modified", status.Modified)
	return status, nil
}

// digest returns the xxh3 digest and length of everything read from r.
func digest(r io.Reader) (uint64, int64, error) {
	h := xxh3.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return 0, n, err
	}
	return h.Sum64(), n, nil
}
