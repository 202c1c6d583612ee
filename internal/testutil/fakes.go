package testutil

import (
	"io"

	"vcs-go/internal/vcs"
)

// FaultyStore wraps an ObjectStore and fails the operations whose error
// field is set.
type FaultyStore struct {
	vcs.ObjectStore
	PutErr     error
	RestoreErr error
}

var _ vcs.ObjectStore = (*FaultyStore)(nil)

func (s *FaultyStore) Put(filename string, version int, sourcePath string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	return s.ObjectStore.Put(filename, version, sourcePath)
}

func (s *FaultyStore) Get(filename string, version int) (io.ReadCloser, error) {
	return s.ObjectStore.Get(filename, version)
}

func (s *FaultyStore) Restore(filename string, version int, destPath string) error {
	if s.RestoreErr != nil {
		return s.RestoreErr
	}
	return s.ObjectStore.Restore(filename, version, destPath)
}

// FailingHasher always fails to fingerprint.
type FailingHasher struct {
	Err error
}

var _ vcs.Hasher = (*FailingHasher)(nil)

func (h *FailingHasher) Fingerprint(string) (string, error) {
	return "", h.Err
}
