package vcs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// VersionManager is the orchestration layer that composes the hasher, the
// object store, and the ledger into check-in, checkout, listing, and
// rollback. It works on one filename at a time.
type VersionManager struct {
	workDir string
	ledger  Ledger
	store   ObjectStore
	hasher  Hasher
	logger  Logger
	clock   Clock
}

// NewVersionManager creates a VersionManager. Filenames are resolved
// against workDir to find the working copy.
func NewVersionManager(workDir string, ledger Ledger, store ObjectStore, hasher Hasher, logger Logger, clock Clock) *VersionManager {
	return &VersionManager{
		workDir: workDir,
		ledger:  ledger,
		store:   store,
		hasher:  hasher,
		logger:  logger,
		clock:   clock,
	}
}

// WorkingPath returns the working-tree location of filename.
func (m *VersionManager) WorkingPath(filename string) string {
	return filepath.Join(m.workDir, filepath.FromSlash(filename))
}

// Latest returns the latest version of filename, or 0 if it has none.
func (m *VersionManager) Latest(filename string) int {
	return m.ledger.Latest(filename)
}

// CheckIn snapshots the working copy of filename as its next version and
// returns the new version number.
//
// The snapshot is stored before the ledger is touched: if the store write
// fails no record is created. A fingerprint failure is not fatal; the
// placeholder hash is recorded instead.
func (m *VersionManager) CheckIn(filename string, comment string) (int, error) {
	if err := ValidateFilename(filename); err != nil {
		return 0, err
	}

	next := m.ledger.Latest(filename) + 1
	src := m.WorkingPath(filename)

	if err := m.store.Put(filename, next, src); err != nil {
		return 0, fmt.Errorf("storing %s version %d: %w", filename, next, err)
	}

	hash, err := m.hasher.Fingerprint(src)
	if err != nil {
		m.logger.Warn("fingerprint failed, using placeholder", "file", filename, "error", err)
		hash = PlaceholderHash
	}

	var size int64
	if info, err := os.Stat(src); err == nil {
		size = info.Size()
	} else {
		m.logger.Warn("stat failed, recording size 0", "file", filename, "error", err)
	}

	rec := VersionRecord{
		Filename:  filename,
		Version:   next,
		Timestamp: time.Unix(m.clock.Now().Unix(), 0),
		Size:      size,
		Hash:      NormalizeHash(hash),
		Comment:   NormalizeComment(comment),
	}

	if err := m.ledger.Commit(rec); err != nil {
		return 0, fmt.Errorf("recording %s version %d: %w", filename, next, err)
	}

	m.logger.Info("checked in", "file", filename, "version", next, "size", size)
	return next, nil
}

// CheckOut restores version of filename over its working copy.
// The ledger is not changed.
func (m *VersionManager) CheckOut(filename string, version int) error {
	return m.CheckOutTo(filename, version, m.WorkingPath(filename))
}

// CheckOutTo restores version of filename to destPath.
func (m *VersionManager) CheckOutTo(filename string, version int, destPath string) error {
	if _, err := m.find(filename, version); err != nil {
		return err
	}

	if err := m.store.Restore(filename, version, destPath); err != nil {
		return fmt.Errorf("restoring %s version %d: %w", filename, version, err)
	}

	m.logger.Info("checked out", "file", filename, "version", version, "dest", destPath)
	return nil
}

// ListVersions returns every record of filename, newest first.
func (m *VersionManager) ListVersions(filename string) ([]VersionRecord, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, err
	}

	records := m.ledger.Records(filename)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no versions found for %s", ErrNotFound, filename)
	}
	return records, nil
}

// Rollback restores version of filename to the working copy and checks the
// result in as a new version, which it returns. History is never rewritten.
// If the restore fails, nothing is checked in.
func (m *VersionManager) Rollback(filename string, version int) (int, error) {
	if _, err := m.find(filename, version); err != nil {
		return 0, err
	}

	if err := m.store.Restore(filename, version, m.WorkingPath(filename)); err != nil {
		return 0, fmt.Errorf("restoring %s version %d: %w", filename, version, err)
	}

	next, err := m.CheckIn(filename, RollbackComment(version))
	if err != nil {
		return 0, fmt.Errorf("recording rollback: %w", err)
	}

	m.logger.Info("rolled back", "file", filename, "to", version, "version", next)
	return next, nil
}

// find looks up a record, wrapping ErrNotFound when absent.
func (m *VersionManager) find(filename string, version int) (VersionRecord, error) {
	if err := ValidateFilename(filename); err != nil {
		return VersionRecord{}, err
	}
	if version < 1 {
		return VersionRecord{}, fmt.Errorf("%w: version %d", ErrInvalidArgument, version)
	}

	rec, ok := m.ledger.Find(filename, version)
	if !ok {
		return VersionRecord{}, fmt.Errorf("%w: version %d of %s", ErrNotFound, version, filename)
	}
	return rec, nil
}
