package arclight

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKey is returned when a signing key is malformed or unsupported.
	ErrInvalidKey = errors.New("invalid key")

	// ErrLedgerUnavailable is returned for transient failures reaching the ledger.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrLedgerRejected is returned when the ledger refuses a record.
	ErrLedgerRejected = errors.New("ledger rejected record")

	// ErrNotFound is returned when a record id is unknown to the ledger.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownRecordKind is returned when a record or query names a kind
	// outside the tag schema.
	ErrUnknownRecordKind = errors.New("unknown record kind")

	// ErrInvalidTagValue is returned when a tag cannot be encoded as a ledger tag.
	ErrInvalidTagValue = errors.New("invalid tag value")

	// ErrPartialPublish matches a *PublishError that left confirmed records behind.
	ErrPartialPublish = errors.New("partial publish")

	// ErrIndexConflict is returned when the post index kept changing underneath
	// an append.
	ErrIndexConflict = errors.New("post index changed concurrently")
)

// Step names one fallible stage of a publish pipeline.
type Step string

const (
	StepIdentity Step = "identity"
	StepCover    Step = "cover"
	StepMedia    Step = "media"
	StepInfo     Step = "info"
	StepIndex    Step = "index"
	StepField    Step = "field"
)

// PublishError reports the step a publish failed at together with every
// record that was confirmed before the failure. Those records stay on the
// ledger as orphans.
type PublishError struct {
	Operation string // release kind or record kind of a field update
	Step      Step
	State     State
	Track     int // 1-based track number for album media failures, 0 otherwise
	Submitted []SubmittedRecord
	Err       error
}

func (e *PublishError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "publishing %s: %s step", e.Operation, e.Step)
	if e.Track > 0 {
		fmt.Fprintf(&b, " (track %d)", e.Track)
	}
	if len(e.Submitted) > 0 {
		fmt.Fprintf(&b, " after %d confirmed records", len(e.Submitted))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *PublishError) Unwrap() error { return e.Err }

// Is reports ErrPartialPublish only when at least one record was confirmed.
func (e *PublishError) Is(target error) bool {
	return target == ErrPartialPublish && len(e.Submitted) > 0
}

// OrphanedIDs returns the ids of the records confirmed before the failure.
func (e *PublishError) OrphanedIDs() []RecordID {
	ids := make([]RecordID, len(e.Submitted))
	for i, r := range e.Submitted {
		ids[i] = r.ID
	}
	return ids
}
