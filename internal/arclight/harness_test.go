package arclight_test

import (
	"sync"
	"testing"
	"time"

	"arclight-go/internal/arclight"
	"arclight-go/internal/database"
	"arclight-go/internal/ledger"
	"arclight-go/internal/testutil"
	"arclight-go/internal/wallet"
)

var testStart = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// harness wires a publisher and resolver over one in-memory ledger.
type harness struct {
	ledger    *ledger.MemoryLedger
	hooks     *testutil.HookLedger
	journal   *database.SQLiteJournal
	clock     *testutil.StubClock
	resolver  *arclight.Resolver
	publisher *arclight.Publisher
	key       *wallet.JWK
	address   arclight.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		ledger:  testutil.NewTestLedger(),
		journal: testutil.NewTestJournal(t),
		clock:   testutil.NewTickingClock(testStart, time.Second),
		key:     testutil.NewTestKey("alice"),
	}
	h.hooks = &testutil.HookLedger{Ledger: h.ledger}
	h.address = testutil.AddressOf(h.key)
	h.resolver = arclight.NewResolver(h.hooks, arclight.DefaultNamespaces(), arclight.NewNopLogger())
	h.publisher = h.newPublisher(h.hooks)
	return h
}

// newPublisher creates a second publisher over l sharing the harness
// resolver namespaces and clock but not its per-address locks.
func (h *harness) newPublisher(l arclight.Ledger) *arclight.Publisher {
	resolver := arclight.NewResolver(l, arclight.DefaultNamespaces(), arclight.NewNopLogger())
	return arclight.NewPublisher(
		l,
		resolver,
		testutil.NewTestEncryptor(),
		h.journal,
		arclight.DefaultNamespaces(),
		h.clock,
		testutil.NewStubIDGenerator(),
		arclight.NewNopLogger(),
	)
}

// recordsOfKind returns the ledger records of kind in submission order.
func (h *harness) recordsOfKind(kind arclight.Kind) []arclight.RecordMeta {
	var out []arclight.RecordMeta
	for _, m := range h.ledger.Records() {
		if m.Tags.Value(arclight.TagType) == string(kind) {
			out = append(out, m)
		}
	}
	return out
}

func coverMedia() arclight.Media {
	return arclight.Media{Data: []byte("cover-bytes"), ContentType: "image/png"}
}

func track(title, payload string) arclight.Track {
	return arclight.Track{Title: title, Price: 1, Media: arclight.Media{Data: []byte(payload), ContentType: "audio/mpeg"}}
}

func singleRelease() *arclight.Release {
	return &arclight.Release{
		Kind:        arclight.ReleaseSingle,
		Title:       "Morning",
		Description: "first light",
		Genre:       "Ambient",
		Price:       2.5,
		Duration:    183,
		Cover:       coverMedia(),
		Tracks:      []arclight.Track{track("Morning", "morning-audio")},
	}
}

func albumRelease(n int) *arclight.Release {
	r := &arclight.Release{
		Kind:        arclight.ReleaseAlbum,
		Title:       "Night Drive",
		Description: "late roads",
		Genre:       "Synthwave",
		Price:       9,
		Cover:       coverMedia(),
	}
	for i := 1; i <= n; i++ {
		r.Tracks = append(r.Tracks, track("Track "+string(rune('A'+i-1)), "audio-"+string(rune('a'+i-1))))
	}
	return r
}

// eventLog is a concurrency-safe Observer.
type eventLog struct {
	mu     sync.Mutex
	events []arclight.Event
}

func (l *eventLog) OnEvent(e arclight.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) states() []arclight.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []arclight.State
	for _, e := range l.events {
		if e.Type == arclight.EventState {
			out = append(out, e.State)
		}
	}
	return out
}

func (l *eventLog) ofType(typ arclight.EventType) []arclight.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []arclight.Event
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
