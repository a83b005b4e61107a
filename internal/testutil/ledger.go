package testutil

import (
	"context"
	"sync"

	"arclight-go/internal/arclight"
	"arclight-go/internal/ledger"
)

// NewTestLedger creates an in-memory ledger with sequential anchors and a
// small chunk size, so uploads report intermediate progress.
func NewTestLedger() *ledger.MemoryLedger {
	return ledger.NewMemoryLedger(NewStubIDGenerator(), 16)
}

// HookLedger wraps a ledger with optional hooks. BeforeSubmit and
// BeforeQuery can fail a call; AfterQuery runs once a query has been
// answered, before its result is returned.
type HookLedger struct {
	arclight.Ledger

	BeforeSubmit func(ctx context.Context, rec *arclight.UnsignedRecord) error
	BeforeQuery  func(q *arclight.Predicate) error
	AfterQuery   func(q *arclight.Predicate)

	mu      sync.Mutex
	submits int
}

func (h *HookLedger) Submit(ctx context.Context, rec *arclight.UnsignedRecord, key arclight.Key, progress func(int)) (arclight.RecordID, error) {
	h.mu.Lock()
	h.submits++
	h.mu.Unlock()
	if h.BeforeSubmit != nil {
		if err := h.BeforeSubmit(ctx, rec); err != nil {
			return "", err
		}
	}
	return h.Ledger.Submit(ctx, rec, key, progress)
}

func (h *HookLedger) Query(ctx context.Context, q *arclight.Predicate) ([]arclight.RecordID, error) {
	if h.BeforeQuery != nil {
		if err := h.BeforeQuery(q); err != nil {
			return nil, err
		}
	}
	ids, err := h.Ledger.Query(ctx, q)
	if err == nil && h.AfterQuery != nil {
		h.AfterQuery(q)
	}
	return ids, err
}

// Submits returns how many submissions reached the hook.
func (h *HookLedger) Submits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.submits
}

// FailKind returns a BeforeSubmit hook failing every record of kind with err.
func FailKind(kind arclight.Kind, err error) func(context.Context, *arclight.UnsignedRecord) error {
	return func(_ context.Context, rec *arclight.UnsignedRecord) error {
		if rec.Tags.Value(arclight.TagType) == string(kind) {
			return err
		}
		return nil
	}
}

// QueriesKind reports whether any leaf of q matches Type=kind.
func QueriesKind(q *arclight.Predicate, kind arclight.Kind) bool {
	if q == nil {
		return false
	}
	if q.Op == arclight.OpEquals {
		return q.Key == arclight.TagType && q.Value == string(kind)
	}
	return QueriesKind(q.Left, kind) || QueriesKind(q.Right, kind)
}

// Barrier blocks callers of Wait until n of them have arrived. Exactly n
// calls to Wait are allowed.
type Barrier struct {
	wg sync.WaitGroup
}

func NewBarrier(n int) *Barrier {
	b := &Barrier{}
	b.wg.Add(n)
	return b
}

func (b *Barrier) Wait() {
	b.wg.Done()
	b.wg.Wait()
}
