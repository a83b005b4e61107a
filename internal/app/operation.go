package app

import (
	"sync"

	"arclight-go/internal/arclight"
)

// ViewState is what the CLI shows about the operation in flight. It changes
// only through progress events and is safe to read from another goroutine.
type ViewState struct {
	mu       sync.Mutex
	snapshot Snapshot
	onChange func(Snapshot)
}

// Snapshot is a copy of the view at one point in time.
type Snapshot struct {
	Operation string
	State     arclight.State
	Step      arclight.Step
	Track     int
	Tracks    int
	Percent   int
	Uploads   int // completed uploads in this operation
}

// NewViewState creates a view calling onChange, if set, after every event.
func NewViewState(onChange func(Snapshot)) *ViewState {
	return &ViewState{onChange: onChange}
}

// OnEvent implements arclight.Observer.
func (v *ViewState) OnEvent(e arclight.Event) {
	v.mu.Lock()
	s := &v.snapshot
	switch e.Type {
	case arclight.EventReset:
		*s = Snapshot{Operation: e.Operation}
	case arclight.EventProgress:
		s.Step, s.Track, s.Tracks, s.Percent = e.Step, e.Track, e.Tracks, e.Percent
		if e.Percent == 100 {
			s.Uploads++
		}
	case arclight.EventState:
		s.State = e.State
	}
	snap := *s
	v.mu.Unlock()

	if v.onChange != nil {
		v.onChange(snap)
	}
}

// Snapshot returns the current view.
func (v *ViewState) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot
}

var _ arclight.Observer = (*ViewState)(nil)
