package arclight

import (
	"strconv"
)

// Address identifies a ledger account. It is derived from the public half of
// a signing key and never carries key material itself.
type Address string

// RecordID is the ledger-assigned identifier of a confirmed record.
type RecordID string

// Key is the capability handed to the ledger for signing. Callers never
// inspect it beyond asking for the owner material addresses derive from.
type Key interface {
	Owner() ([]byte, error)
}

// Tag is a single key/value pair attached to a record.
type Tag struct {
	Name  string `json:"name" cbor:"1,keyasint"`
	Value string `json:"value" cbor:"2,keyasint"`
}

// Tags is the ordered tag list of a record. Each name appears at most once.
type Tags []Tag

// Get returns the value of the named tag.
func (t Tags) Get(name string) (string, bool) {
	for _, tag := range t {
		if tag.Name == name {
			return tag.Value, true
		}
	}
	return "", false
}

// Value returns the named tag's value or "" when absent.
func (t Tags) Value(name string) string {
	v, _ := t.Get(name)
	return v
}

// Kind parses the Type tag.
func (t Tags) Kind() (Kind, error) {
	v, ok := t.Get(TagType)
	if !ok {
		return "", ErrUnknownRecordKind
	}
	return ParseKind(v)
}

// UnixTime returns the Unix-Time tag in milliseconds, or 0 when it is absent
// or unparsable.
func (t Tags) UnixTime() int64 {
	v, ok := t.Get(TagUnixTime)
	if !ok {
		return 0
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// UnsignedRecord is a payload with its complete tag set, ready to be signed
// and submitted by a Ledger.
type UnsignedRecord struct {
	Payload []byte
	Tags    Tags
}

// RecordMeta describes a confirmed record without its payload.
type RecordMeta struct {
	ID    RecordID `json:"id" cbor:"1,keyasint"`
	Owner Address  `json:"owner" cbor:"2,keyasint"`
	Tags  Tags     `json:"tags" cbor:"3,keyasint"`
	Size  int64    `json:"size" cbor:"4,keyasint"`
}

// SubmittedRecord is one confirmed record produced by a publish.
type SubmittedRecord struct {
	ID    RecordID
	Kind  Kind
	Step  Step
	Track int
}
