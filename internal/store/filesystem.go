// Package store holds the object store implementations: one immutable,
// byte-exact copy per (filename, version).
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"vcs-go/internal/vcs"
)

// nameFile holds the filename a container belongs to.
const nameFile = "name"

// FileSystemStore keeps snapshots as plain files:
//
//	<root>/
//	  <container>/
//	    name
//	    v1
//	    v2
//
// The container is the xxh3-128 digest of the filename in hex, so its
// length is fixed whatever the filename holds. The name file records the
// filename the container belongs to.
type FileSystemStore struct {
	root string
}

var _ vcs.ObjectStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates a store rooted at root, creating it if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating store root: %w", vcs.ErrIOFailure, err)
	}
	return &FileSystemStore{root: root}, nil
}

// Root returns the store directory.
func (s *FileSystemStore) Root() string {
	return s.root
}

// ObjectPath returns where (filename, version) is stored.
func (s *FileSystemStore) ObjectPath(filename string, version int) string {
	return filepath.Join(s.containerPath(filename), "v"+strconv.Itoa(version))
}

func (s *FileSystemStore) containerPath(filename string) string {
	return filepath.Join(s.root, ContainerName(filename))
}

// ContainerName returns the directory name holding the versions of
// filename.
func ContainerName(filename string) string {
	h := xxh3.HashString128(filename)
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// claimContainer creates the container for filename and its name file.
// A container already naming another file is ErrCorrupt.
func (s *FileSystemStore) claimContainer(filename string) error {
	dir := s.containerPath(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating container for %s: %w", vcs.ErrIOFailure, filename, err)
	}

	namePath := filepath.Join(dir, nameFile)
	existing, err := os.ReadFile(namePath)
	switch {
	case err == nil:
		if string(existing) != filename {
			return fmt.Errorf("%w: container %s belongs to %q, not %q", vcs.ErrCorrupt, ContainerName(filename), existing, filename)
		}
		return nil
	case !os.IsNotExist(err):
		return fmt.Errorf("%w: reading container name: %w", vcs.ErrIOFailure, err)
	}

	if _, err := writeVerified(namePath, strings.NewReader(filename), 0644); err != nil {
		return fmt.Errorf("recording container name for %s: %w", filename, err)
	}
	return nil
}

// Put copies sourcePath into the store. The container is created lazily.
func (s *FileSystemStore) Put(filename string, version int, sourcePath string) error {
	if err := checkKey(filename, version); err != nil {
		return err
	}

	src, err := openSource(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := s.claimContainer(filename); err != nil {
		return err
	}

	if _, err := writeVerified(s.ObjectPath(filename, version), src, 0644); err != nil {
		return fmt.Errorf("storing %s v%d: %w", filename, version, err)
	}
	return nil
}

// Get opens a stored snapshot for reading.
func (s *FileSystemStore) Get(filename string, version int) (io.ReadCloser, error) {
	if err := checkKey(filename, version); err != nil {
		return nil, err
	}

	f, err := os.Open(s.ObjectPath(filename, version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: snapshot %s v%d", vcs.ErrNotFound, filename, version)
		}
		return nil, fmt.Errorf("%w: opening snapshot: %w", vcs.ErrIOFailure, err)
	}
	return f, nil
}

// Restore writes a stored snapshot over destPath.
func (s *FileSystemStore) Restore(filename string, version int, destPath string) error {
	r, err := s.Get(filename, version)
	if err != nil {
		return err
	}
	defer r.Close()

	return restoreTo(destPath, r)
}
