package arclight

import "time"

// Journal keeps a local history of publish operations and every record they
// confirmed, so records orphaned by a failed publish can be found again.
type Journal interface {
	// BeginOperation stores a new operation and returns its journal id.
	BeginOperation(op *Operation) (int64, error)

	// RecordSubmitted appends a confirmed record to an operation.
	RecordSubmitted(opID int64, rec SubmittedRecord) error

	// FinishOperation stores the final state. opErr is nil on success.
	FinishOperation(opID int64, state State, failedStep Step, opErr error) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*Operation, error)

	// ListSubmitted returns the records confirmed by an operation in
	// submission order.
	ListSubmitted(opID int64) ([]SubmittedRecord, error)

	Close() error
}

// Operation is one journaled publish.
type Operation struct {
	ID         int64
	Ref        string
	Name       string // release kind or field record kind
	Title      string
	Address    Address
	StartedAt  time.Time
	FinishedAt *time.Time
	State      State
	FailedStep Step
	Error      string
}

// nopJournal is used when a Publisher has no journal. Its zero operation id
// disables the remaining calls.
type nopJournal struct{}

func (nopJournal) BeginOperation(*Operation) (int64, error) { return 0, nil }
func (nopJournal) RecordSubmitted(int64, SubmittedRecord) error { return nil }
func (nopJournal) FinishOperation(int64, State, Step, error) error { return nil }
func (nopJournal) ListOperations(int) ([]*Operation, error) { return nil, nil }
func (nopJournal) ListSubmitted(int64) ([]SubmittedRecord, error) { return nil, nil }
func (nopJournal) Close() error { return nil }
