package ledger

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"arclight-go/internal/arclight"
)

// CachedLedger caches record metadata and payloads by id. Records are
// immutable, so a cached entry never goes stale; the TTL only bounds memory.
// Queries always reach the underlying ledger.
type CachedLedger struct {
	next  arclight.Ledger
	cache *cache.Cache
}

// NewCachedLedger wraps next with a cache whose entries expire after ttl.
func NewCachedLedger(next arclight.Ledger, ttl time.Duration) *CachedLedger {
	return &CachedLedger{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedLedger) DeriveAddress(key arclight.Key) (arclight.Address, error) {
	return c.next.DeriveAddress(key)
}

func (c *CachedLedger) Submit(ctx context.Context, rec *arclight.UnsignedRecord, key arclight.Key, progress func(int)) (arclight.RecordID, error) {
	return c.next.Submit(ctx, rec, key, progress)
}

func (c *CachedLedger) FetchRecord(ctx context.Context, id arclight.RecordID) (*arclight.RecordMeta, error) {
	if v, ok := c.cache.Get("meta:" + string(id)); ok {
		return copyMeta(v.(*arclight.RecordMeta)), nil
	}
	meta, err := c.next.FetchRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault("meta:"+string(id), copyMeta(meta))
	return meta, nil
}

// copyMeta returns a copy of meta that shares no tag storage with it.
func copyMeta(meta *arclight.RecordMeta) *arclight.RecordMeta {
	out := *meta
	out.Tags = append(arclight.Tags(nil), meta.Tags...)
	return &out
}

// FetchRecordData returns a payload shared with the cache; callers must not
// modify it.
func (c *CachedLedger) FetchRecordData(ctx context.Context, id arclight.RecordID) ([]byte, error) {
	if v, ok := c.cache.Get("data:" + string(id)); ok {
		return v.([]byte), nil
	}
	data, err := c.next.FetchRecordData(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault("data:"+string(id), data)
	return data, nil
}

func (c *CachedLedger) Query(ctx context.Context, q *arclight.Predicate) ([]arclight.RecordID, error) {
	return c.next.Query(ctx, q)
}

// Compile-time check that CachedLedger implements arclight.Ledger
var _ arclight.Ledger = (*CachedLedger)(nil)
