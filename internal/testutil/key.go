package testutil

import (
	"encoding/base64"

	"arclight-go/internal/arclight"
	"arclight-go/internal/wallet"
)

// NewTestKey returns a public-only JWK whose modulus is derived from seed.
// Keys with the same seed share an address.
func NewTestKey(seed string) *wallet.JWK {
	return &wallet.JWK{
		Kty: "RSA",
		N:   base64.RawURLEncoding.EncodeToString([]byte("test-modulus:" + seed)),
		E:   "AQAB",
	}
}

// AddressOf derives the address of key, panicking on failure.
func AddressOf(key arclight.Key) arclight.Address {
	addr, err := wallet.Address(key)
	if err != nil {
		panic(err)
	}
	return addr
}
