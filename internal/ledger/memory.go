package ledger

import (
	"slices"
	"sync"

	"vcs-go/internal/vcs"
)

// MemoryStorage keeps the persisted state in memory. Useful for tests.
type MemoryStorage struct {
	mu      sync.Mutex
	state   *vcs.LedgerState
	saveErr error
	saves   int
}

var _ vcs.LedgerStorage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// FailSaves makes every following Save return err. Pass nil to recover.
func (m *MemoryStorage) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// Saves returns how many Save calls succeeded.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStorage) Save(state *vcs.LedgerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = &vcs.LedgerState{
		TotalVersions: state.TotalVersions,
		Records:       slices.Clone(state.Records),
	}
	m.saves++
	return nil
}

func (m *MemoryStorage) Load() (*vcs.LedgerState, *vcs.LoadReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return &vcs.LedgerState{}, &vcs.LoadReport{}, nil
	}
	state := &vcs.LedgerState{
		TotalVersions: m.state.TotalVersions,
		Records:       slices.Clone(m.state.Records),
	}
	return state, &vcs.LoadReport{Records: len(state.Records)}, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
