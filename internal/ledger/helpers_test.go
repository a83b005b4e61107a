package ledger

import (
	"encoding/base64"
	"fmt"
	"sync"

	"arclight-go/internal/arclight"
	"arclight-go/internal/wallet"
)

// seqAnchors hands out anchor-0, anchor-1, ...
type seqAnchors struct {
	mu sync.Mutex
	n  int
}

func (s *seqAnchors) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("anchor-%d", s.n)
	s.n++
	return id
}

func testKey(seed string) *wallet.JWK {
	return &wallet.JWK{
		Kty: "RSA",
		N:   base64.RawURLEncoding.EncodeToString([]byte("modulus-" + seed)),
		E:   "AQAB",
	}
}

func testRecord(payload string, tags ...string) *arclight.UnsignedRecord {
	rec := &arclight.UnsignedRecord{Payload: []byte(payload)}
	for i := 0; i+1 < len(tags); i += 2 {
		rec.Tags = append(rec.Tags, arclight.Tag{Name: tags[i], Value: tags[i+1]})
	}
	return rec
}

// progressLog records every progress callback.
type progressLog struct {
	mu   sync.Mutex
	seen []int
}

func (p *progressLog) report(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, pct)
}

func (p *progressLog) values() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.seen...)
}
