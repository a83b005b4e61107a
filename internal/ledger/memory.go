package ledger

import (
	"context"
	"fmt"
	"sync"

	"arclight-go/internal/arclight"
	"arclight-go/internal/wallet"
)

// MemoryLedger is an in-memory ledger. Records are confirmed as soon as their
// last chunk is stored. This implementation is safe for concurrent use.
type MemoryLedger struct {
	mu        sync.RWMutex
	records   map[arclight.RecordID]*memoryRecord
	order     []arclight.RecordID
	anchors   arclight.IDGenerator
	chunkSize int
}

type memoryRecord struct {
	meta arclight.RecordMeta
	data []byte
}

// NewMemoryLedger creates an empty ledger. anchors seeds record ids; chunkSize
// of 0 selects DefaultChunkSize.
func NewMemoryLedger(anchors arclight.IDGenerator, chunkSize int) *MemoryLedger {
	return &MemoryLedger{
		records:   make(map[arclight.RecordID]*memoryRecord),
		anchors:   anchors,
		chunkSize: chunkSize,
	}
}

func (m *MemoryLedger) DeriveAddress(key arclight.Key) (arclight.Address, error) {
	return wallet.Address(key)
}

func (m *MemoryLedger) Submit(ctx context.Context, rec *arclight.UnsignedRecord, key arclight.Key, progress func(int)) (arclight.RecordID, error) {
	if err := checkRecord(rec); err != nil {
		return "", err
	}
	owner, err := m.DeriveAddress(key)
	if err != nil {
		return "", err
	}
	id, err := recordID(owner, rec, m.anchors.New())
	if err != nil {
		return "", err
	}

	buf := make([]byte, 0, len(rec.Payload))
	err = uploadChunks(ctx, len(rec.Payload), m.chunkSize, progress, func(start, end int) error {
		buf = append(buf, rec.Payload[start:end]...)
		return nil
	})
	if err != nil {
		return "", unavailable("uploading record", err)
	}

	tags := make(arclight.Tags, len(rec.Tags))
	copy(tags, rec.Tags)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; ok {
		return "", fmt.Errorf("%w: duplicate record id %s", arclight.ErrLedgerRejected, id)
	}
	m.records[id] = &memoryRecord{
		meta: arclight.RecordMeta{ID: id, Owner: owner, Tags: tags, Size: int64(len(buf))},
		data: buf,
	}
	m.order = append(m.order, id)
	return id, nil
}

func (m *MemoryLedger) FetchRecord(ctx context.Context, id arclight.RecordID) (*arclight.RecordMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetching record", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", arclight.ErrNotFound, id)
	}
	meta := r.meta
	meta.Tags = append(arclight.Tags(nil), r.meta.Tags...)
	return &meta, nil
}

func (m *MemoryLedger) FetchRecordData(ctx context.Context, id arclight.RecordID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetching record data", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", arclight.ErrNotFound, id)
	}
	return append([]byte(nil), r.data...), nil
}

// Query returns matches in submission order.
func (m *MemoryLedger) Query(ctx context.Context, q *arclight.Predicate) ([]arclight.RecordID, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", arclight.ErrLedgerRejected, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("querying", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []arclight.RecordID{}
	for _, id := range m.order {
		r := m.records[id]
		if q.Match(r.meta.Owner, r.meta.Tags) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Len returns the number of confirmed records.
func (m *MemoryLedger) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Records returns the metadata of every record in submission order.
func (m *MemoryLedger) Records() []arclight.RecordMeta {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]arclight.RecordMeta, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id].meta)
	}
	return out
}

// Compile-time check that MemoryLedger implements arclight.Ledger
var _ arclight.Ledger = (*MemoryLedger)(nil)
