package arclight

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so publish timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator produces the unpredictable anchors ledgers mix into record ids.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// unixMillis is the Unix-Time tag encoding used by every record.
func unixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
