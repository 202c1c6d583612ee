package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vcs-go/internal/vcs"
)

const (
	textHeader   = "# VCS Metadata File"
	textSection  = "# File Versions"
	totalPrefix  = "TOTAL_VERSIONS="
	recordPrefix = "FILE="
)

// recordFields names the "|"-separated fields of a record line, in order.
// COMMENT is last so it may contain "|".
var recordFields = [...]string{"FILE", "VERSION", "TIMESTAMP", "SIZE", "HASH", "COMMENT"}

// TextStorage persists the ledger as a line-oriented text file:
//
//	# VCS Metadata File
//	TOTAL_VERSIONS=2
//
//	# File Versions
//	FILE=a.txt|VERSION=2|TIMESTAMP=1700000100|SIZE=2|HASH=...|COMMENT=...
//	FILE=a.txt|VERSION=1|TIMESTAMP=1700000000|SIZE=1|HASH=...|COMMENT=...
//
// Records are written newest first.
type TextStorage struct {
	path string
}

var _ vcs.LedgerStorage = (*TextStorage)(nil)

// NewTextStorage creates a TextStorage for the file at path.
func NewTextStorage(path string) *TextStorage {
	return &TextStorage{path: path}
}

// Path returns the ledger file location.
func (s *TextStorage) Path() string {
	return s.path
}

// Save rewrites the whole file through a temp file and rename.
func (s *TextStorage) Save(state *vcs.LedgerState) error {
	dir := filepath.Dir(s.path)
	tmpFile, err := os.CreateTemp(dir, ".versions-*.meta")
	if err != nil {
		return fmt.Errorf("%w: creating temp ledger: %w", vcs.ErrIOFailure, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmpFile)
	if err := writeText(w, state); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: writing ledger: %w", vcs.ErrIOFailure, err)
	}
	if err := w.Flush(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: writing ledger: %w", vcs.ErrIOFailure, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temp ledger: %w", vcs.ErrIOFailure, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: replacing ledger: %w", vcs.ErrIOFailure, err)
	}

	success = true
	return nil
}

// Load parses the file. A missing file is an empty ledger.
func (s *TextStorage) Load() (*vcs.LedgerState, *vcs.LoadReport, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &vcs.LedgerState{}, &vcs.LoadReport{}, nil
		}
		return nil, nil, fmt.Errorf("%w: opening ledger: %w", vcs.ErrIOFailure, err)
	}
	defer f.Close()

	state, report, err := parseText(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading ledger: %w", vcs.ErrIOFailure, err)
	}
	return state, report, nil
}

func (s *TextStorage) Close() error {
	return nil
}

func writeText(w io.Writer, state *vcs.LedgerState) error {
	if _, err := fmt.Fprintf(w, "%s\n%s%d\n\n%s\n", textHeader, totalPrefix, state.TotalVersions, textSection); err != nil {
		return err
	}
	for _, rec := range state.Records {
		if _, err := fmt.Fprintln(w, formatRecord(rec)); err != nil {
			return err
		}
	}
	return nil
}

func formatRecord(rec vcs.VersionRecord) string {
	return fmt.Sprintf("FILE=%s|VERSION=%d|TIMESTAMP=%d|SIZE=%d|HASH=%s|COMMENT=%s",
		rec.Filename, rec.Version, rec.Timestamp.Unix(), rec.Size, rec.Hash, vcs.NormalizeComment(rec.Comment))
}

// maxLineLen bounds one ledger line. Longer lines are skipped whole.
const maxLineLen = 1 << 20

// skippedTextLen is how much of an overlong line a SkippedLine keeps.
const skippedTextLen = 80

// parseText reads a ledger leniently. Lines that cannot produce a record
// are reported and skipped; only a read error fails the parse.
func parseText(r io.Reader) (*vcs.LedgerState, *vcs.LoadReport, error) {
	state := &vcs.LedgerState{}
	report := &vcs.LoadReport{}
	br := bufio.NewReader(r)

	lineNo := 0
	skip := func(text, reason string) {
		report.Skipped = append(report.Skipped, vcs.SkippedLine{Line: lineNo, Text: text, Reason: reason})
	}

	for {
		line, tooLong, err := readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		lineNo++

		switch {
		case tooLong:
			skip(line, "line too long")

		case line == "" || strings.HasPrefix(line, "#"):
			continue

		case strings.HasPrefix(line, totalPrefix):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, totalPrefix)))
			if err != nil {
				skip(line, "unparseable TOTAL_VERSIONS")
				continue
			}
			state.TotalVersions = n

		case strings.HasPrefix(line, recordPrefix):
			rec, partial, reason := parseRecord(line)
			if reason != "" {
				skip(line, reason)
				continue
			}
			state.Records = append(state.Records, rec)
			report.Records++
			if partial {
				report.Partial++
			}

		default:
			skip(line, "unrecognized line")
		}
	}
	return state, report, nil
}

// readLine returns the next line without its line ending. A line longer
// than maxLineLen is consumed to its end, and only its first
// skippedTextLen bytes are returned with tooLong set. io.EOF is returned
// only when no line is left.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if err == io.EOF && (buf != nil || tooLong) {
				break
			}
			return "", false, err
		}
		if !tooLong {
			if len(buf)+len(chunk) > maxLineLen {
				tooLong = true
				buf = append(buf, chunk...)
				if len(buf) > skippedTextLen {
					buf = buf[:skippedTextLen]
				}
			} else {
				buf = append(buf, chunk...)
			}
		}
		if buf == nil {
			buf = []byte{}
		}
		if !isPrefix {
			break
		}
	}
	return string(buf), tooLong, nil
}

// parseRecord parses one FILE= line. A non-empty reason means the line is
// unusable. Otherwise partial reports whether any optional field fell back
// to its zero value.
func parseRecord(line string) (rec vcs.VersionRecord, partial bool, reason string) {
	parts := strings.SplitN(line, "|", len(recordFields))
	values := make([]string, len(recordFields))
	present := make([]bool, len(recordFields))
	for i, part := range parts {
		key, value, ok := strings.Cut(part, "=")
		if !ok || key != recordFields[i] {
			continue
		}
		values[i] = value
		present[i] = true
	}

	rec.Filename = values[0]
	if err := vcs.ValidateFilename(rec.Filename); err != nil {
		return rec, false, "invalid filename"
	}

	version, err := strconv.Atoi(values[1])
	if !present[1] || err != nil || version < 1 {
		return rec, false, "missing or invalid VERSION"
	}
	rec.Version = version

	if ts, err := strconv.ParseInt(values[2], 10, 64); present[2] && err == nil {
		rec.Timestamp = time.Unix(ts, 0)
	} else {
		partial = true
	}

	if size, err := strconv.ParseInt(values[3], 10, 64); present[3] && err == nil && size >= 0 {
		rec.Size = size
	} else {
		partial = true
	}

	if present[4] {
		rec.Hash = vcs.NormalizeHash(values[4])
	} else {
		partial = true
	}

	if present[5] {
		rec.Comment = vcs.NormalizeComment(values[5])
	} else {
		partial = true
	}

	return rec, partial, ""
}
