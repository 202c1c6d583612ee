package encryption

import (
	"bytes"
	"fmt"
	"io"

	"vcs-go/internal/vcs"
)

// testHeader marks output of TestEncryptor so stored bytes differ from the
// working copy while staying trivially reversible.
var testHeader = []byte("VCSENC\x00\x00")

// TestEncryptor is a deterministic encryptor for tests. It prepends
// testHeader on Encrypt and strips it on Decrypt. Unlock accepts any
// passphrase except the one named by rejectPassphrase.
type TestEncryptor struct {
	setupCalled      bool
	unlockCalls      int
	rejectPassphrase string
}

var _ vcs.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// RejectPassphrase makes Unlock fail with ErrWrongPassphrase for p.
func (e *TestEncryptor) RejectPassphrase(p string) {
	e.rejectPassphrase = p
}

// UnlockCalls returns how many times Unlock has been called.
func (e *TestEncryptor) UnlockCalls() int {
	return e.unlockCalls
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (vcs.DecryptionContext, error) {
	e.unlockCalls++
	if e.rejectPassphrase != "" && passphrase == e.rejectPassphrase {
		return nil, ErrWrongPassphrase
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ vcs.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
