package encryption

import (
	"fmt"
	"io"

	"arclight-go/internal/arclight"
)

// PlainEncryptor publishes media unencrypted. It is selected with
// `type = "none"` for free releases.
type PlainEncryptor struct{}

var (
	_ arclight.Encryptor         = PlainEncryptor{}
	_ arclight.DecryptionContext = PlainEncryptor{}
)

func (PlainEncryptor) Setup(string) error { return nil }

func (PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (p PlainEncryptor) Unlock(string) (arclight.DecryptionContext, error) { return p, nil }

func (PlainEncryptor) IsConfigured() bool { return true }

func (PlainEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
