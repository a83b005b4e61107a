package arclight

import "context"

// Ledger is the append-only, tag-indexed record store. Every method may fail
// with ErrLedgerUnavailable or ErrLedgerRejected; a cancelled context is
// reported as a failure of the call it interrupted.
type Ledger interface {
	// DeriveAddress returns the address owning records signed by key.
	// Fails with ErrInvalidKey.
	DeriveAddress(key Key) (Address, error)

	// Submit signs rec with key, uploads it and returns once the ledger has
	// confirmed it. progress receives upload percentages from 0 to 100 and
	// may be nil.
	Submit(ctx context.Context, rec *UnsignedRecord, key Key, progress func(pct int)) (RecordID, error)

	// FetchRecord returns the tags and owner of a confirmed record.
	// Fails with ErrNotFound.
	FetchRecord(ctx context.Context, id RecordID) (*RecordMeta, error)

	// FetchRecordData returns the payload of a confirmed record.
	// Fails with ErrNotFound.
	FetchRecordData(ctx context.Context, id RecordID) ([]byte, error)

	// Query returns the ids of every record matching q, in no particular
	// order. No matches is not an error.
	Query(ctx context.Context, q *Predicate) ([]RecordID, error)
}
