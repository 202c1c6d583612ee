package vcs

import "errors"

// Error categories. Implementations wrap one of these so callers can branch
// with errors.Is, usually alongside the underlying cause:
//
//	fmt.Errorf("%w: writing object: %w", vcs.ErrIOFailure, err)
var (
	// ErrInvalidArgument reports a missing or malformed identifier.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound reports a missing version, ledger entry, or stored object.
	ErrNotFound = errors.New("not found")

	// ErrIOFailure reports an open, read, write, or mkdir failure at the
	// filesystem boundary.
	ErrIOFailure = errors.New("i/o failure")

	// ErrCorrupt reports persisted state that cannot be interpreted at all.
	// Individually malformed ledger lines are skipped instead.
	ErrCorrupt = errors.New("corrupt")

	// ErrExists reports that a repository is already initialized.
	ErrExists = errors.New("already exists")

	// ErrLocked reports that another process holds the repository.
	ErrLocked = errors.New("repository is locked")
)
