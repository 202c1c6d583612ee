package store

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"vcs-go/internal/encryption"
	"vcs-go/internal/vcs"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func readAll(t *testing.T, r io.ReadCloser) []byte {
	t.Helper()
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	return data
}

// storeFactories lists every ObjectStore, so the same contract runs
// against each of them.
func storeFactories() map[string]func(t *testing.T) vcs.ObjectStore {
	return map[string]func(t *testing.T) vcs.ObjectStore{
		"filesystem": func(t *testing.T) vcs.ObjectStore {
			s, err := NewFileSystemStore(filepath.Join(t.TempDir(), "versions"))
			if err != nil {
				t.Fatalf("NewFileSystemStore() error = %v", err)
			}
			return s
		},
		"memory": func(t *testing.T) vcs.ObjectStore {
			return NewMemoryStore()
		},
		"encrypted": func(t *testing.T) vcs.ObjectStore {
			inner, err := NewFileSystemStore(filepath.Join(t.TempDir(), "versions"))
			if err != nil {
				t.Fatalf("NewFileSystemStore() error = %v", err)
			}
			return NewEncryptedStore(inner, encryption.NewTestEncryptor(), filepath.Join(t.TempDir(), "temp"), func() (string, error) {
				return "secret", nil
			})
		},
	}
}

func TestObjectStore_Contract(t *testing.T) {
	payloads := map[string][]byte{
		"text":   []byte("hello world\n"),
		"empty":  {},
		"binary": {0x00, 0xff, 0x0d, 0x0a, 0x00, 0x7c},
		"large":  bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 64*1024),
	}

	for storeName, newStore := range storeFactories() {
		t.Run(storeName, func(t *testing.T) {
			for name, data := range payloads {
				t.Run("round trip "+name, func(t *testing.T) {
					s := newStore(t)
					src := filepath.Join(t.TempDir(), "src")
					writeFile(t, src, data)

					if err := s.Put("dir/a.txt", 1, src); err != nil {
						t.Fatalf("Put() error = %v", err)
					}

					r, err := s.Get("dir/a.txt", 1)
					if err != nil {
						t.Fatalf("Get() error = %v", err)
					}
					if got := readAll(t, r); !bytes.Equal(got, data) {
						t.Errorf("Get() returned %d bytes, want %d", len(got), len(data))
					}

					dest := filepath.Join(t.TempDir(), "out", "a.txt")
					if err := s.Restore("dir/a.txt", 1, dest); err != nil {
						t.Fatalf("Restore() error = %v", err)
					}
					got, err := os.ReadFile(dest)
					if err != nil {
						t.Fatal(err)
					}
					if !bytes.Equal(got, data) {
						t.Errorf("Restore() wrote %d bytes, want %d", len(got), len(data))
					}
				})
			}

			t.Run("versions are independent", func(t *testing.T) {
				s := newStore(t)
				src := filepath.Join(t.TempDir(), "src")

				writeFile(t, src, []byte("one"))
				if err := s.Put("a.txt", 1, src); err != nil {
					t.Fatalf("Put(1) error = %v", err)
				}
				writeFile(t, src, []byte("two"))
				if err := s.Put("a.txt", 2, src); err != nil {
					t.Fatalf("Put(2) error = %v", err)
				}

				for v, want := range map[int]string{1: "one", 2: "two"} {
					r, err := s.Get("a.txt", v)
					if err != nil {
						t.Fatalf("Get(%d) error = %v", v, err)
					}
					if got := string(readAll(t, r)); got != want {
						t.Errorf("Get(%d) = %q, want %q", v, got, want)
					}
				}
			})

			t.Run("missing snapshot", func(t *testing.T) {
				s := newStore(t)

				if _, err := s.Get("a.txt", 1); !errors.Is(err, vcs.ErrNotFound) {
					t.Errorf("Get() error = %v, want ErrNotFound", err)
				}

				dest := filepath.Join(t.TempDir(), "a.txt")
				writeFile(t, dest, []byte("keep me"))
				if err := s.Restore("a.txt", 1, dest); !errors.Is(err, vcs.ErrNotFound) {
					t.Errorf("Restore() error = %v, want ErrNotFound", err)
				}
				got, _ := os.ReadFile(dest)
				if string(got) != "keep me" {
					t.Errorf("destination changed to %q", got)
				}
			})

			t.Run("missing source", func(t *testing.T) {
				s := newStore(t)
				err := s.Put("a.txt", 1, filepath.Join(t.TempDir(), "absent"))
				if !errors.Is(err, vcs.ErrNotFound) {
					t.Errorf("Put() error = %v, want ErrNotFound", err)
				}
				if _, err := s.Get("a.txt", 1); !errors.Is(err, vcs.ErrNotFound) {
					t.Errorf("Get() after failed Put error = %v, want ErrNotFound", err)
				}
			})

			t.Run("invalid keys", func(t *testing.T) {
				s := newStore(t)
				src := filepath.Join(t.TempDir(), "src")
				writeFile(t, src, []byte("x"))

				if err := s.Put("", 1, src); !errors.Is(err, vcs.ErrInvalidArgument) {
					t.Errorf("Put(empty name) error = %v, want ErrInvalidArgument", err)
				}
				if err := s.Put("a.txt", 0, src); !errors.Is(err, vcs.ErrInvalidArgument) {
					t.Errorf("Put(version 0) error = %v, want ErrInvalidArgument", err)
				}
			})
		})
	}
}

func TestRestore_PreservesPermissions(t *testing.T) {
	s := NewMemoryStore()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, src, []byte("#!/bin/sh\n"))
	if err := s.Put("run.sh", 1, src); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	dest := filepath.Join(dir, "run.sh")
	writeFile(t, dest, []byte("old"))
	if err := os.Chmod(dest, 0755); err != nil {
		t.Fatal(err)
	}

	if err := s.Restore("run.sh", 1, dest); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0755 {
		t.Errorf("permissions = %o, want 755", perm)
	}
}

func TestRestore_LeavesNoTempFiles(t *testing.T) {
	s := NewMemoryStore()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, src, []byte("content"))
	if err := s.Put("a.txt", 1, src); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	out := filepath.Join(dir, "out")
	if err := s.Restore("a.txt", 1, filepath.Join(out, "a.txt")); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		t.Errorf("destination directory holds %v, want only a.txt", entries)
	}
}

func TestRestore_RejectsDirectory(t *testing.T) {
	s := NewMemoryStore()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, src, []byte("x"))
	if err := s.Put("a.txt", 1, src); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := s.Restore("a.txt", 1, dir); !errors.Is(err, vcs.ErrInvalidArgument) {
		t.Errorf("Restore() onto directory error = %v, want ErrInvalidArgument", err)
	}
}

func TestPut_RejectsDirectorySource(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put("a.txt", 1, t.TempDir()); !errors.Is(err, vcs.ErrInvalidArgument) {
		t.Errorf("Put() of a directory error = %v, want ErrInvalidArgument", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}
