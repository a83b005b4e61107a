package arclight

// State is the position of a publish operation in its pipeline.
type State int

const (
	StateDraft State = iota
	StateCoverSubmitted
	StateMediaSubmitted
	StateInfoSubmitted
	StateIndexUpdated
	StateFieldSubmitted
	StateComplete
)

var stateNames = map[State]string{
	StateDraft:          "draft",
	StateCoverSubmitted: "cover-submitted",
	StateMediaSubmitted: "media-submitted",
	StateInfoSubmitted:  "info-submitted",
	StateIndexUpdated:   "index-updated",
	StateFieldSubmitted: "field-submitted",
	StateComplete:       "complete",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return StateDraft, false
}

// EventType distinguishes the events an Observer receives.
type EventType int

const (
	// EventReset is emitted once when an operation starts; observers zero
	// their counters.
	EventReset EventType = iota
	// EventProgress reports upload progress of the current step.
	EventProgress
	// EventState reports a pipeline state transition.
	EventState
)

// Event is one progress notification from a publish operation.
type Event struct {
	Type      EventType
	Operation string
	Step      Step
	State     State
	Track     int // 1-based track being uploaded, 0 outside the media step
	Tracks    int
	Percent   int
}

// Observer receives progress events. Calls happen on the publishing goroutine.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}
