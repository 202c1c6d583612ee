package hasher

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vcs-go/internal/testutil"
	"vcs-go/internal/vcs"
)

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		wantHash uint64
		wantSize int64
	}{
		{
			name:     "empty input folds zero length",
			input:    nil,
			wantHash: 5381 * 33,
			wantSize: 0,
		},
		{
			name:     "single byte",
			input:    []byte("X"),
			wantHash: (5381*33+'X')*33 + 1,
			wantSize: 1,
		},
		{
			name:     "two bytes",
			input:    []byte("XY"),
			wantHash: ((5381*33+'X')*33+'Y')*33 + 2,
			wantSize: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, size, err := Sum(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Sum() error = %v", err)
			}
			if got != tt.wantHash {
				t.Errorf("Sum() hash = %d, want %d", got, tt.wantHash)
			}
			if size != tt.wantSize {
				t.Errorf("Sum() size = %d, want %d", size, tt.wantSize)
			}
		})
	}
}

func TestSum_LengthDistinguishesPrefixes(t *testing.T) {
	a, _, _ := Sum(strings.NewReader("abc"))
	b, _, _ := Sum(strings.NewReader("abc\x00"))
	if a == b {
		t.Errorf("Sum() of a prefix and its zero-extended form collide: %x", a)
	}
}

func TestDJB2Hasher_Fingerprint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("X"), 0644); err != nil {
		t.Fatal(err)
	}

	clock := testutil.NewStubClock(time.Unix(1700001234, 0))
	h := NewDJB2Hasher(clock)

	got, err := h.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if want := "0059759e1234"; got != want {
		t.Errorf("Fingerprint() = %q, want %q", got, want)
	}
	if len(got) > vcs.MaxHashLen {
		t.Errorf("Fingerprint() length %d exceeds %d", len(got), vcs.MaxHashLen)
	}

	t.Run("same content at another time differs", func(t *testing.T) {
		clock.Advance(time.Second)
		again, err := h.Fingerprint(path)
		if err != nil {
			t.Fatalf("Fingerprint() error = %v", err)
		}
		if again == got {
			t.Errorf("Fingerprint() = %q both times, want a different suffix", again)
		}
		if again[:8] != got[:8] {
			t.Errorf("digest part changed: %q vs %q", again[:8], got[:8])
		}
	})
}

func TestDJB2Hasher_Fingerprint_MissingFile(t *testing.T) {
	h := NewDJB2Hasher(testutil.FixedClock())

	_, err := h.Fingerprint(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, vcs.ErrNotFound) {
		t.Errorf("Fingerprint() error = %v, want ErrNotFound", err)
	}
}
