package store

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"vcs-go/internal/vcs"
)

type objectKey struct {
	filename string
	version  int
}

// MemoryStore keeps snapshots in memory. Useful for tests.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	objects map[objectKey][]byte
	mu      sync.RWMutex
}

var _ vcs.ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[objectKey][]byte)}
}

// Put reads sourcePath fully and keeps a copy.
func (m *MemoryStore) Put(filename string, version int, sourcePath string) error {
	if err := checkKey(filename, version); err != nil {
		return err
	}

	src, err := openSource(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("%w: reading source: %w", vcs.ErrIOFailure, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey{filename, version}] = data
	return nil
}

// Get returns a reader over a copy of the stored bytes.
func (m *MemoryStore) Get(filename string, version int) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[objectKey{filename, version}]
	if !ok {
		return nil, fmt.Errorf("%w: snapshot %s v%d", vcs.ErrNotFound, filename, version)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Restore writes a stored snapshot over destPath.
func (m *MemoryStore) Restore(filename string, version int, destPath string) error {
	r, err := m.Get(filename, version)
	if err != nil {
		return err
	}
	defer r.Close()

	return restoreTo(destPath, r)
}

// Len returns the number of stored snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
