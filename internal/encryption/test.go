package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"arclight-go/internal/arclight"
)

// sealedPrefix marks media sealed by TestEncryptor.
var sealedPrefix = []byte("ARCENC\x00\x00")

// ErrWrongPassphrase is returned by Unlock when the passphrase differs from
// the one given to Setup.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// TestEncryptor seals media by prefixing a marker, with no key material.
// Once Setup has run, Unlock only accepts the same passphrase.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase *string
}

var _ arclight.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passphrase = &passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, io.MultiReader(bytes.NewReader(sealedPrefix), r)); err != nil {
		return fmt.Errorf("sealing media: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (arclight.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.passphrase != nil && *e.passphrase != passphrase {
		return nil, ErrWrongPassphrase
	}
	return TestDecryptionContext{}, nil
}

// IsConfigured is always true; sealing needs no keys.
func (e *TestEncryptor) IsConfigured() bool { return true }

// TestDecryptionContext removes the marker added by TestEncryptor.
type TestDecryptionContext struct{}

var _ arclight.DecryptionContext = TestDecryptionContext{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	prefix := make([]byte, len(sealedPrefix))
	if _, err := io.ReadFull(r, prefix); err != nil {
		return fmt.Errorf("reading sealed prefix: %w", err)
	}
	if !bytes.Equal(prefix, sealedPrefix) {
		return errors.New("media was not sealed by the test encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("opening media: %w", err)
	}
	return nil
}
