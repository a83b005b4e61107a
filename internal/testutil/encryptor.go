package testutil

import (
	"arclight-go/internal/arclight"
	"arclight-go/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() arclight.Encryptor {
	return encryption.NewTestEncryptor()
}
