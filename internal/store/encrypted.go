package store

import (
	"fmt"
	"io"
	"os"
	"sync"

	"vcs-go/internal/vcs"
)

// PassphraseFunc supplies the passphrase the first time a snapshot is read.
type PassphraseFunc func() (string, error)

// EncryptedStore seals snapshots before handing them to an inner store and
// opens them on the way out. Sealing needs only the public key, so check-in
// never asks for a passphrase. The private key is unlocked on first read
// and kept for the life of the store.
type EncryptedStore struct {
	inner      vcs.ObjectStore
	encryptor  vcs.Encryptor
	tempDir    string
	passphrase PassphraseFunc

	mu  sync.Mutex
	ctx vcs.DecryptionContext
}

var _ vcs.ObjectStore = (*EncryptedStore)(nil)

// NewEncryptedStore wraps inner. Ciphertext is staged in tempDir before it
// is stored.
func NewEncryptedStore(inner vcs.ObjectStore, encryptor vcs.Encryptor, tempDir string, passphrase PassphraseFunc) *EncryptedStore {
	return &EncryptedStore{
		inner:      inner,
		encryptor:  encryptor,
		tempDir:    tempDir,
		passphrase: passphrase,
	}
}

// Put seals sourcePath into a temp file and stores the ciphertext.
func (s *EncryptedStore) Put(filename string, version int, sourcePath string) error {
	if err := checkKey(filename, version); err != nil {
		return err
	}

	src, err := openSource(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(s.tempDir, 0700); err != nil {
		return fmt.Errorf("%w: creating temp directory: %w", vcs.ErrIOFailure, err)
	}
	tmpFile, err := os.CreateTemp(s.tempDir, "seal-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", vcs.ErrIOFailure, err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := s.encryptor.Encrypt(src, tmpFile); err != nil {
		tmpFile.Close()
		return fmt.Errorf("encrypting %s: %w", filename, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %w", vcs.ErrIOFailure, err)
	}

	return s.inner.Put(filename, version, tmpPath)
}

// Get returns a reader of the decrypted snapshot. Decryption runs in a
// goroutine feeding a pipe; Close stops it and waits for it to exit.
func (s *EncryptedStore) Get(filename string, version int) (io.ReadCloser, error) {
	sealed, err := s.inner.Get(filename, version)
	if err != nil {
		return nil, err
	}

	ctx, err := s.unlock()
	if err != nil {
		sealed.Close()
		return nil, err
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := ctx.Decrypt(sealed, pw)
		sealed.Close()
		if err != nil {
			err = fmt.Errorf("decrypting %s v%d: %w", filename, version, err)
		}
		pw.CloseWithError(err)
	}()

	return &pipeReader{PipeReader: pr, done: done}, nil
}

// Restore decrypts a snapshot over destPath. destPath is left alone if
// decryption fails part way.
func (s *EncryptedStore) Restore(filename string, version int, destPath string) error {
	r, err := s.Get(filename, version)
	if err != nil {
		return err
	}
	defer r.Close()

	return restoreTo(destPath, r)
}

func (s *EncryptedStore) unlock() (vcs.DecryptionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return s.ctx, nil
	}
	if s.passphrase == nil {
		return nil, fmt.Errorf("unlocking private key: no passphrase source")
	}

	passphrase, err := s.passphrase()
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	ctx, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking private key: %w", err)
	}
	s.ctx = ctx
	return ctx, nil
}

type pipeReader struct {
	*io.PipeReader
	done chan struct{}
}

func (p *pipeReader) Close() error {
	err := p.PipeReader.Close()
	<-p.done
	return err
}
