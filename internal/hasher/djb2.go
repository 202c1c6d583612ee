// Package hasher computes the display fingerprint recorded with each
// version: a djb2 digest of the content and its length, suffixed with a
// time-derived disambiguator.
package hasher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"vcs-go/internal/vcs"
)

const seed uint64 = 5381

// DJB2Hasher implements vcs.Hasher.
type DJB2Hasher struct {
	clock vcs.Clock
}

var _ vcs.Hasher = (*DJB2Hasher)(nil)

// NewDJB2Hasher creates a hasher that takes its disambiguator from clock.
func NewDJB2Hasher(clock vcs.Clock) *DJB2Hasher {
	return &DJB2Hasher{clock: clock}
}

// Fingerprint hashes the file at path. The result is the digest in hex
// (at least 8 digits) followed by the current unix time modulo 10000.
func (h *DJB2Hasher) Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", vcs.ErrNotFound, path)
		}
		return "", fmt.Errorf("%w: opening %s: %w", vcs.ErrIOFailure, path, err)
	}
	defer f.Close()

	sum, _, err := Sum(f)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", vcs.ErrIOFailure, path, err)
	}

	return fmt.Sprintf("%08x%d", sum, h.clock.Now().Unix()%10000), nil
}

// Sum returns the djb2 digest of r with the byte count folded in once more
// at the end, plus that byte count. Arithmetic wraps at 64 bits.
func Sum(r io.Reader) (uint64, int64, error) {
	br := bufio.NewReader(r)
	hash := seed
	var n int64
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, n, err
		}
		hash = hash*33 + uint64(c)
		n++
	}
	hash = hash*33 + uint64(n)
	return hash, n, nil
}
