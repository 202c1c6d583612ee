// Package database persists the ledger in SQLite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"vcs-go/internal/database/migrations"
	"vcs-go/internal/vcs"
)

const totalVersionsKey = "total_versions"

// SQLiteStorage implements vcs.LedgerStorage on a SQLite database.
// Record order is kept in the position column, 0 being the newest.
type SQLiteStorage struct {
	db       *sql.DB
	path     string
	migrated bool
}

var _ vcs.LedgerStorage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens the database at path. path can be ":memory:".
// The schema is migrated on first use.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStorage{db: db, path: path}, nil
}

// OpenConnection opens a SQLite connection configured for the ledger.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", vcs.ErrIOFailure, err)
	}
	// One connection: each ":memory:" connection is its own database, and
	// the ledger has a single writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: configuring database: %w", vcs.ErrIOFailure, err)
	}
	return db, nil
}

// Path returns the database location.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// CheckSchema reports whether the database is at the latest schema
// version. A database nothing has been loaded from or saved to yet
// reports migrations.ErrNoSchema.
func (s *SQLiteStorage) CheckSchema() error {
	return migrations.Status(s.db)
}

func (s *SQLiteStorage) ensureSchema() error {
	if s.migrated {
		return nil
	}
	if err := migrations.Up(s.db); err != nil {
		return fmt.Errorf("migrating ledger database: %w", err)
	}
	s.migrated = true
	return nil
}

// Save replaces every stored record with state in one transaction.
func (s *SQLiteStorage) Save(state *vcs.LedgerState) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", vcs.ErrIOFailure, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM version_records"); err != nil {
		return fmt.Errorf("%w: clearing records: %w", vcs.ErrIOFailure, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO version_records
		(position, filename, version, timestamp, size, hash, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: preparing insert: %w", vcs.ErrIOFailure, err)
	}
	defer stmt.Close()

	for i, rec := range state.Records {
		_, err := stmt.ExecContext(ctx, i, rec.Filename, rec.Version, rec.Timestamp.Unix(), rec.Size, rec.Hash, rec.Comment)
		if err != nil {
			return fmt.Errorf("%w: inserting %s v%d: %w", vcs.ErrIOFailure, rec.Filename, rec.Version, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO ledger_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, totalVersionsKey, state.TotalVersions)
	if err != nil {
		return fmt.Errorf("%w: writing total versions: %w", vcs.ErrIOFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing ledger: %w", vcs.ErrIOFailure, err)
	}
	return nil
}

// Load reads every record, newest first. The schema constraints mean
// nothing is ever skipped.
func (s *SQLiteStorage) Load() (*vcs.LedgerState, *vcs.LoadReport, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, nil, err
	}

	ctx := context.Background()
	state := &vcs.LedgerState{}

	err := s.db.QueryRowContext(ctx, "SELECT value FROM ledger_meta WHERE key = ?", totalVersionsKey).Scan(&state.TotalVersions)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: reading total versions: %w", vcs.ErrIOFailure, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT filename, version, timestamp, size, hash, comment
		FROM version_records ORDER BY position`)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: querying records: %w", vcs.ErrIOFailure, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec vcs.VersionRecord
		var ts int64
		if err := rows.Scan(&rec.Filename, &rec.Version, &ts, &rec.Size, &rec.Hash, &rec.Comment); err != nil {
			return nil, nil, fmt.Errorf("%w: scanning record: %w", vcs.ErrCorrupt, err)
		}
		rec.Timestamp = time.Unix(ts, 0)
		state.Records = append(state.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: reading records: %w", vcs.ErrIOFailure, err)
	}

	return state, &vcs.LoadReport{Records: len(state.Records)}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
