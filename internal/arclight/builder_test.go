package arclight_test

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"

	"arclight-go/internal/arclight"
	"arclight-go/internal/testutil"
)

func TestBuilder_Build(t *testing.T) {
	clock := testutil.FixedClock()
	b := arclight.NewBuilder(arclight.DefaultNamespaces(), clock)
	author := arclight.Author{Address: "addr-1", Username: "alice"}

	rec, err := b.Build([]byte("payload"), arclight.KindAlbumMusic, author,
		arclight.A(arclight.TagContentType, "audio/flac"),
		arclight.A(arclight.TagTrackNumber, 2),
		arclight.A(arclight.TagTitle, "Второй"),
	)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := arclight.Tags{
		{Name: "App-Name", Value: "arclight-test"},
		{Name: "Type", Value: "album-music"},
		{Name: "Unix-Time", Value: strconv.FormatInt(clock.Now().UnixMilli(), 10)},
		{Name: "Author-Address", Value: "addr-1"},
		{Name: "Author-Username", Value: "alice"},
		{Name: "Content-Type", Value: "audio/flac"},
		{Name: "Track-Number", Value: "2"},
		{Name: "Title", Value: "Второй"},
	}
	if len(rec.Tags) != len(want) {
		t.Fatalf("Build() tags = %v, want %v", rec.Tags, want)
	}
	for i := range want {
		if rec.Tags[i] != want[i] {
			t.Errorf("tag %d = %+v, want %+v", i, rec.Tags[i], want[i])
		}
	}
	if string(rec.Payload) != "payload" {
		t.Errorf("Payload = %q", rec.Payload)
	}
}

func TestBuilder_BuildSuccessor(t *testing.T) {
	clock := testutil.FixedClock()
	now := clock.Now().UnixMilli()
	b := arclight.NewBuilder(arclight.DefaultNamespaces(), clock)
	author := arclight.Author{Address: "addr-1"}

	prevAt := func(ms int64) *arclight.RecordMeta {
		return &arclight.RecordMeta{ID: "prev", Tags: arclight.Tags{{Name: arclight.TagUnixTime, Value: strconv.FormatInt(ms, 10)}}}
	}
	tests := []struct {
		name string
		prev *arclight.RecordMeta
		want int64
	}{
		{"no predecessor", nil, now},
		{"older predecessor", prevAt(now - 5000), now},
		{"same millisecond", prevAt(now), now + 1},
		{"predecessor ahead of clock", prevAt(now + 250), now + 251},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := b.BuildSuccessor(tt.prev, []byte("[]"), arclight.KindPostInfo, author)
			if err != nil {
				t.Fatalf("BuildSuccessor() error = %v", err)
			}
			if got := rec.Tags.UnixTime(); got != tt.want {
				t.Errorf("Unix-Time = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuilder_IdentityKindsUseIdentityNamespace(t *testing.T) {
	b := arclight.NewBuilder(arclight.DefaultNamespaces(), testutil.FixedClock())
	author := arclight.Author{Address: "addr-1"}

	for _, kind := range []arclight.Kind{arclight.KindName, arclight.KindAvatar} {
		rec, err := b.Build(nil, kind, author)
		if err != nil {
			t.Fatalf("Build(%s) error = %v", kind, err)
		}
		if got := rec.Tags.Value(arclight.TagAppName); got != "arweave-id" {
			t.Errorf("Build(%s) App-Name = %q, want arweave-id", kind, got)
		}
		if rec.Payload == nil {
			t.Errorf("Build(%s) payload is nil, want empty", kind)
		}
	}
}

func TestBuilder_Rejects(t *testing.T) {
	b := arclight.NewBuilder(arclight.DefaultNamespaces(), testutil.FixedClock())
	author := arclight.Author{Address: "addr-1"}

	tests := []struct {
		name    string
		kind    arclight.Kind
		author  arclight.Author
		attrs   []arclight.Attr
		wantErr error
	}{
		{"unknown kind", "mixtape-info", author, nil, arclight.ErrUnknownRecordKind},
		{"empty address", arclight.KindSingleInfo, arclight.Author{}, nil, arclight.ErrInvalidTagValue},
		{"invalid username", arclight.KindSingleInfo, arclight.Author{Address: "a", Username: "\xff"}, nil, arclight.ErrInvalidTagValue},
		{"empty tag name", arclight.KindSingleInfo, author, []arclight.Attr{arclight.A("", "x")}, arclight.ErrInvalidTagValue},
		{"reserved tag", arclight.KindSingleInfo, author, []arclight.Attr{arclight.A("Type", "x")}, arclight.ErrInvalidTagValue},
		{"duplicate tag", arclight.KindSingleInfo, author, []arclight.Attr{arclight.A("Title", "a"), arclight.A("Title", "b")}, arclight.ErrInvalidTagValue},
		{"composite value", arclight.KindSingleInfo, author, []arclight.Attr{arclight.A("Title", []string{"a"})}, arclight.ErrInvalidTagValue},
		{"nil value", arclight.KindSingleInfo, author, []arclight.Attr{arclight.A("Title", nil)}, arclight.ErrInvalidTagValue},
		{"NaN price", arclight.KindSingleInfo, author, []arclight.Attr{arclight.A("Price", math.NaN())}, arclight.ErrInvalidTagValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(nil, tt.kind, tt.author, tt.attrs...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeTagValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"text", "text"},
		{true, "true"},
		{42, "42"},
		{int64(-7), "-7"},
		{uint8(255), "255"},
		{2.5, "2.5"},
		{float32(0.1), "0.1"},
		{1e21, "1000000000000000000000"},
		{json.Number("3.14"), "3.14"},
	}
	for _, tt := range tests {
		got, err := arclight.EncodeTagValue(tt.in)
		if err != nil {
			t.Errorf("EncodeTagValue(%v) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("EncodeTagValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}

	for _, bad := range []any{math.Inf(1), json.Number("abc"), "\xfe", struct{}{}, map[string]string{}} {
		if _, err := arclight.EncodeTagValue(bad); !errors.Is(err, arclight.ErrInvalidTagValue) {
			t.Errorf("EncodeTagValue(%#v) error = %v, want ErrInvalidTagValue", bad, err)
		}
	}
}
