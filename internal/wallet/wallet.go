// Package wallet loads the RSA JWK keys that sign ledger records and derives
// the addresses records are owned by.
package wallet

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"arclight-go/internal/arclight"
)

// DefaultBits is the modulus size of generated wallets.
const DefaultBits = 4096

// JWK is an RSA key in JSON Web Key form. Only Kty, N and E are needed to
// derive an address; the private members are carried for signing.
type JWK struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d,omitempty"`
	P   string `json:"p,omitempty"`
	Q   string `json:"q,omitempty"`
	DP  string `json:"dp,omitempty"`
	DQ  string `json:"dq,omitempty"`
	QI  string `json:"qi,omitempty"`
}

var _ arclight.Key = (*JWK)(nil)

// Parse decodes and validates a JWK document.
func Parse(data []byte) (*JWK, error) {
	var k JWK
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("%w: %v", arclight.ErrInvalidKey, err)
	}
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("%w: unsupported key type %q", arclight.ErrInvalidKey, k.Kty)
	}
	if _, err := k.Owner(); err != nil {
		return nil, err
	}
	return &k, nil
}

// LoadFile reads a JWK from path.
func LoadFile(path string) (*JWK, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	k, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return k, nil
}

// Owner returns the decoded modulus.
func (k *JWK) Owner() ([]byte, error) {
	if k.N == "" {
		return nil, fmt.Errorf("%w: missing modulus", arclight.ErrInvalidKey)
	}
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("%w: modulus is not base64url: %v", arclight.ErrInvalidKey, err)
	}
	return n, nil
}

// Address derives the ledger address of key: the unpadded base64url SHA-256
// of its owner bytes.
func Address(key arclight.Key) (arclight.Address, error) {
	if key == nil {
		return "", fmt.Errorf("%w: no key", arclight.ErrInvalidKey)
	}
	owner, err := key.Owner()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(owner)
	return arclight.Address(base64.RawURLEncoding.EncodeToString(sum[:])), nil
}

// Generate creates a new RSA wallet.
func Generate(bits int) (*JWK, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating rsa key: %w", err)
	}
	priv.Precompute()

	enc := func(i *big.Int) string { return base64.RawURLEncoding.EncodeToString(i.Bytes()) }
	return &JWK{
		Kty: "RSA",
		N:   enc(priv.N),
		E:   enc(big.NewInt(int64(priv.E))),
		D:   enc(priv.D),
		P:   enc(priv.Primes[0]),
		Q:   enc(priv.Primes[1]),
		DP:  enc(priv.Precomputed.Dp),
		DQ:  enc(priv.Precomputed.Dq),
		QI:  enc(priv.Precomputed.Qinv),
	}, nil
}

// WriteFile stores k at path with owner-only permissions, refusing to
// replace an existing wallet.
func (k *JWK) WriteFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("wallet already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating wallet directory: %w", err)
	}
	data, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("encoding wallet: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing wallet: %w", err)
	}
	return nil
}
