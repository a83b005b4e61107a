package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"arclight-go/internal/arclight"
)

func typeName(v any) string { return fmt.Sprintf("%T", v) }

func TestRecordID(t *testing.T) {
	rec := testRecord("payload", "Type", "name")

	a, err := recordID("owner", rec, "anchor")
	if err != nil {
		t.Fatalf("recordID() error = %v", err)
	}
	b, _ := recordID("owner", rec, "anchor")
	if a != b {
		t.Errorf("recordID() not deterministic: %s != %s", a, b)
	}
	if !validID(a) || len(a) != 43 {
		t.Errorf("recordID() = %q, want 43 base64url characters", a)
	}

	variants := map[string]func() (arclight.RecordID, error){
		"owner":   func() (arclight.RecordID, error) { return recordID("other", rec, "anchor") },
		"anchor":  func() (arclight.RecordID, error) { return recordID("owner", rec, "anchor-2") },
		"payload": func() (arclight.RecordID, error) { return recordID("owner", testRecord("payloaD", "Type", "name"), "anchor") },
		"tags":    func() (arclight.RecordID, error) { return recordID("owner", testRecord("payload", "Type", "avatar"), "anchor") },
	}
	for name, f := range variants {
		id, err := f()
		if err != nil {
			t.Fatalf("%s: recordID() error = %v", name, err)
		}
		if id == a {
			t.Errorf("changing %s kept id %s", name, id)
		}
	}
}

func TestUploadChunks(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		chunkSize int
		want      []int
		chunks    int
	}{
		{"empty", 0, 4, []int{0, 100}, 0},
		{"single chunk", 3, 4, []int{0, 100}, 1},
		{"exact chunks", 8, 4, []int{0, 50, 100}, 2},
		{"ragged", 10, 4, []int{0, 40, 80, 100}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log progressLog
			chunks := 0
			err := uploadChunks(context.Background(), tt.total, tt.chunkSize, log.report, func(start, end int) error {
				chunks++
				return nil
			})
			if err != nil {
				t.Fatalf("uploadChunks() error = %v", err)
			}
			if chunks != tt.chunks {
				t.Errorf("chunks = %d, want %d", chunks, tt.chunks)
			}
			if got := fmt.Sprint(log.values()); got != fmt.Sprint(tt.want) {
				t.Errorf("progress = %s, want %v", got, tt.want)
			}
		})
	}
}

func TestUploadChunks_StopsOnWriteError(t *testing.T) {
	boom := errors.New("disk full")
	calls := 0
	err := uploadChunks(context.Background(), 10, 2, nil, func(start, end int) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("uploadChunks() error = %v, want %v", err, boom)
	}
	if calls != 2 {
		t.Errorf("write calls = %d, want 2", calls)
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   arclight.RecordID
		want bool
	}{
		{"abcXYZ019-_", true},
		{"", false},
		{"../x", false},
		{"a/b", false},
		{"a b", false},
	}
	for _, tt := range tests {
		if got := validID(tt.id); got != tt.want {
			t.Errorf("validID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
