package app

import (
	"testing"

	"arclight-go/internal/arclight"
)

func TestViewState_OnEvent(t *testing.T) {
	var seen []Snapshot
	v := NewViewState(func(s Snapshot) { seen = append(seen, s) })

	events := []arclight.Event{
		{Type: arclight.EventReset, Operation: "album"},
		{Type: arclight.EventProgress, Operation: "album", Step: arclight.StepCover, Percent: 0},
		{Type: arclight.EventProgress, Operation: "album", Step: arclight.StepCover, Percent: 100},
		{Type: arclight.EventState, Operation: "album", State: arclight.StateCoverSubmitted},
		{Type: arclight.EventProgress, Operation: "album", Step: arclight.StepMedia, Track: 2, Tracks: 3, Percent: 40},
	}
	for _, e := range events {
		v.OnEvent(e)
	}

	if len(seen) != len(events) {
		t.Fatalf("onChange called %d times, want %d", len(seen), len(events))
	}
	got := v.Snapshot()
	want := Snapshot{
		Operation: "album",
		State:     arclight.StateCoverSubmitted,
		Step:      arclight.StepMedia,
		Track:     2,
		Tracks:    3,
		Percent:   40,
		Uploads:   1,
	}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}

	v.OnEvent(arclight.Event{Type: arclight.EventReset, Operation: "single"})
	if got := v.Snapshot(); got != (Snapshot{Operation: "single"}) {
		t.Errorf("after reset Snapshot() = %+v", got)
	}
}

func TestViewState_NilCallback(t *testing.T) {
	v := NewViewState(nil)
	v.OnEvent(arclight.Event{Type: arclight.EventState, State: arclight.StateComplete})
	if v.Snapshot().State != arclight.StateComplete {
		t.Errorf("State = %v, want complete", v.Snapshot().State)
	}
}
