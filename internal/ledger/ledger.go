// Package ledger keeps the in-memory index of version records and the
// storages it persists to.
package ledger

import (
	"fmt"
	"slices"

	"vcs-go/internal/vcs"
)

type recordKey struct {
	filename string
	version  int
}

// Ledger is the in-memory vcs.Ledger. Records are held oldest first in a
// slice; the exported views are newest first. Two maps index the slice by
// (filename, version) and by filename for the latest version.
type Ledger struct {
	storage vcs.LedgerStorage
	logger  vcs.Logger

	records []vcs.VersionRecord
	index   map[recordKey]int
	latest  map[string]int
	total   int
}

var _ vcs.Ledger = (*Ledger)(nil)

// New creates an empty ledger backed by storage.
func New(storage vcs.LedgerStorage, logger vcs.Logger) *Ledger {
	l := &Ledger{storage: storage, logger: logger}
	l.Reset()
	return l
}

func (l *Ledger) Append(rec vcs.VersionRecord) {
	l.records = append(l.records, rec)
	l.indexAt(len(l.records) - 1)
	l.total++
}

func (l *Ledger) Commit(rec vcs.VersionRecord) error {
	l.Append(rec)
	if err := l.Persist(); err != nil {
		l.records = l.records[:len(l.records)-1]
		l.total--
		l.rebuildIndex()
		return err
	}
	return nil
}

func (l *Ledger) Find(filename string, version int) (vcs.VersionRecord, bool) {
	i, ok := l.index[recordKey{filename, version}]
	if !ok {
		return vcs.VersionRecord{}, false
	}
	return l.records[i], true
}

func (l *Ledger) Latest(filename string) int {
	return l.latest[filename]
}

func (l *Ledger) Records(filename string) []vcs.VersionRecord {
	var out []vcs.VersionRecord
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].Filename == filename {
			out = append(out, l.records[i])
		}
	}
	return out
}

func (l *Ledger) All() []vcs.VersionRecord {
	out := slices.Clone(l.records)
	slices.Reverse(out)
	return out
}

func (l *Ledger) TotalVersions() int {
	return l.total
}

// Len returns the number of records held, which TotalVersions may not match.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Filenames returns each tracked filename once, sorted.
func (l *Ledger) Filenames() []string {
	names := make([]string, 0, len(l.latest))
	for name := range l.latest {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (l *Ledger) Persist() error {
	state := &vcs.LedgerState{
		TotalVersions: l.total,
		Records:       l.All(),
	}
	if err := l.storage.Save(state); err != nil {
		return fmt.Errorf("persisting ledger: %w", err)
	}
	return nil
}

func (l *Ledger) Reload() (*vcs.LoadReport, error) {
	state, report, err := l.storage.Load()
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	l.Reset()
	l.records = make([]vcs.VersionRecord, 0, len(state.Records))
	for i := len(state.Records) - 1; i >= 0; i-- {
		l.records = append(l.records, state.Records[i])
	}
	l.rebuildIndex()
	l.total = state.TotalVersions

	for _, s := range report.Skipped {
		l.logger.Warn("skipped ledger line", "line", s.Line, "reason", s.Reason)
	}
	if report.Partial > 0 {
		l.logger.Warn("ledger records with unreadable fields", "count", report.Partial)
	}
	l.logger.Debug("ledger loaded", "records", len(l.records), "total_versions", l.total)
	return report, nil
}

func (l *Ledger) Reset() {
	l.records = nil
	l.index = make(map[recordKey]int)
	l.latest = make(map[string]int)
	l.total = 0
}

func (l *Ledger) rebuildIndex() {
	l.index = make(map[recordKey]int, len(l.records))
	l.latest = make(map[string]int)
	for i := range l.records {
		l.indexAt(i)
	}
}

// indexAt indexes records[i]. Later positions are newer, so they win.
func (l *Ledger) indexAt(i int) {
	rec := l.records[i]
	l.index[recordKey{rec.Filename, rec.Version}] = i
	if rec.Version > l.latest[rec.Filename] {
		l.latest[rec.Filename] = rec.Version
	}
}
