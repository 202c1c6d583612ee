package vcs

import (
	"errors"
	"fmt"
	"io"
)

// VerifyIssue describes a ledger record whose snapshot is unusable.
type VerifyIssue struct {
	Filename string
	Version  int
	Problem  string
}

func (i VerifyIssue) String() string {
	return fmt.Sprintf("%s v%d: %s", i.Filename, i.Version, i.Problem)
}

// Verify checks that every recorded version has a stored snapshot whose
// length matches the recorded size. Problems are returned as issues; the
// error is reserved for failures that stop the scan.
func (m *VersionManager) Verify() ([]VerifyIssue, error) {
	var issues []VerifyIssue

	records := m.ledger.All()
	for _, rec := range records {
		r, err := m.store.Get(rec.Filename, rec.Version)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				issues = append(issues, VerifyIssue{Filename: rec.Filename, Version: rec.Version, Problem: "snapshot missing"})
				continue
			}
			return issues, fmt.Errorf("opening %s version %d: %w", rec.Filename, rec.Version, err)
		}

		n, err := io.Copy(io.Discard, r)
		r.Close()
		if err != nil {
			issues = append(issues, VerifyIssue{Filename: rec.Filename, Version: rec.Version, Problem: fmt.Sprintf("unreadable: %v", err)})
			continue
		}
		if n != rec.Size {
			issues = append(issues, VerifyIssue{
				Filename: rec.Filename,
				Version:  rec.Version,
				Problem:  fmt.Sprintf("size mismatch: recorded %d bytes, stored %d", rec.Size, n),
			})
		}
	}

	m.logger.Info("verify complete", "records", len(records), "issues", len(issues))
	return issues, nil
}
