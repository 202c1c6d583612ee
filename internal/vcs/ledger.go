package vcs

// Ledger is the in-memory index of version records.
// Records are kept newest first and are never modified once appended.
type Ledger interface {
	// Append adds rec as the newest record and bumps the total count.
	Append(rec VersionRecord)

	// Commit appends rec and persists the ledger. If persisting fails the
	// append is undone, so memory never runs ahead of storage.
	Commit(rec VersionRecord) error

	// Find returns the record for an exact (filename, version) match.
	Find(filename string, version int) (VersionRecord, bool)

	// Latest returns the highest version recorded for filename, or 0.
	Latest(filename string) int

	// Records returns the records of filename, newest first.
	Records(filename string) []VersionRecord

	// All returns every record, newest first.
	All() []VersionRecord

	// TotalVersions returns the display statistic. It may drift from the
	// number of records after a lenient reload.
	TotalVersions() int

	// Persist writes the full record set to storage.
	Persist() error

	// Reload replaces the in-memory records with the persisted ones.
	// Missing storage yields an empty ledger.
	Reload() (*LoadReport, error)

	// Reset drops every in-memory record. Storage is untouched.
	Reset()
}

// LedgerState is the unit of exchange between a Ledger and its storage.
type LedgerState struct {
	TotalVersions int
	Records       []VersionRecord // newest first
}

// LedgerStorage persists a LedgerState. Save is a whole rewrite: after it
// returns, storage holds exactly the given state.
type LedgerStorage interface {
	Save(state *LedgerState) error

	// Load returns the persisted state, or an empty state if nothing has
	// been persisted yet. Malformed entries are reported, not fatal.
	Load() (*LedgerState, *LoadReport, error)

	Close() error
}

// LoadReport accounts for what a reload could not use.
type LoadReport struct {
	Records int           // records loaded, partial ones included
	Partial int           // records with at least one unparseable field
	Skipped []SkippedLine // lines that produced no record
}

// SkippedLine identifies a persisted line that was ignored.
type SkippedLine struct {
	Line   int
	Text   string
	Reason string
}
