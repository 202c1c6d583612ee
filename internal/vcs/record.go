package vcs

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxFilenameLen is the longest filename the ledger accepts, in bytes.
	MaxFilenameLen = 255

	// MaxCommentLen is the longest stored comment, in bytes.
	MaxCommentLen = 511

	// MaxHashLen is the longest stored fingerprint, in bytes.
	MaxHashLen = 63

	// ShortHashLen is how much of a fingerprint is shown in listings.
	ShortHashLen = 12

	// PlaceholderHash is recorded when a fingerprint cannot be computed.
	PlaceholderHash = "unknown"

	// DefaultComment is used by the CLI when check-in has no comment.
	DefaultComment = "No comment provided"
)

// VersionRecord describes one immutable snapshot of a file.
type VersionRecord struct {
	Filename  string
	Version   int
	Timestamp time.Time
	Size      int64
	Hash      string
	Comment   string
}

// ShortHash returns the leading part of the fingerprint for display.
func (r VersionRecord) ShortHash() string {
	if len(r.Hash) > ShortHashLen {
		return r.Hash[:ShortHashLen]
	}
	return r.Hash
}

// Equal reports whether two records carry the same fields.
// Timestamps compare at seconds resolution.
func (r VersionRecord) Equal(o VersionRecord) bool {
	return r.Filename == o.Filename &&
		r.Version == o.Version &&
		r.Timestamp.Unix() == o.Timestamp.Unix() &&
		r.Size == o.Size &&
		r.Hash == o.Hash &&
		r.Comment == o.Comment
}

// RollbackComment is the comment recorded by a rollback to version.
func RollbackComment(version int) string {
	return fmt.Sprintf("Rollback to version %d", version)
}

// ValidateFilename checks that name can identify a file in the ledger.
// Names are slash-separated and relative to the repository base path.
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty filename", ErrInvalidArgument)
	}
	if len(name) > MaxFilenameLen {
		return fmt.Errorf("%w: filename longer than %d bytes", ErrInvalidArgument, MaxFilenameLen)
	}
	if strings.ContainsAny(name, "|\r\n") {
		return fmt.Errorf("%w: filename %q contains a reserved character", ErrInvalidArgument, name)
	}
	if path.IsAbs(name) {
		return fmt.Errorf("%w: filename %q is absolute", ErrInvalidArgument, name)
	}
	clean := path.Clean(name)
	if clean != name || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: filename %q is not a clean relative path", ErrInvalidArgument, name)
	}
	return nil
}

// NormalizeComment flattens line breaks and truncates to MaxCommentLen
// without splitting a UTF-8 sequence.
func NormalizeComment(comment string) string {
	comment = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(comment)
	return truncate(comment, MaxCommentLen)
}

// NormalizeHash truncates a fingerprint to MaxHashLen.
func NormalizeHash(hash string) string {
	return truncate(hash, MaxHashLen)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	// Back up to the start of a rune, at most UTFMax-1 bytes.
	for i := 0; i < utf8.UTFMax-1 && cut > 0 && !utf8.RuneStart(s[cut]); i++ {
		cut--
	}
	return s[:cut]
}
