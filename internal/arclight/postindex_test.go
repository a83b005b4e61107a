package arclight_test

import (
	"testing"

	"arclight-go/internal/arclight"
)

func TestEncodePostIndex(t *testing.T) {
	tests := []struct {
		name    string
		entries []arclight.PostEntry
		want    string
	}{
		{"nil index", nil, `[]`},
		{
			name: "entries keep order",
			entries: []arclight.PostEntry{
				{Kind: arclight.ReleaseAlbum, ID: "info-1", Timestamp: 1700000000000},
				{Kind: arclight.ReleasePodcast, ID: "info-2", Timestamp: 1700000001000},
			},
			want: `[{"album":"info-1","timestamp":1700000000000},{"podcast":"info-2","timestamp":1700000001000}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := arclight.EncodePostIndex(tt.entries)
			if err != nil {
				t.Fatalf("EncodePostIndex() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("EncodePostIndex() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodePostIndex(t *testing.T) {
	t.Run("empty payload", func(t *testing.T) {
		for _, in := range []string{"", "  ", "[]", "null"} {
			got, err := arclight.DecodePostIndex([]byte(in))
			if err != nil {
				t.Fatalf("DecodePostIndex(%q) error = %v", in, err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("DecodePostIndex(%q) = %#v, want empty", in, got)
			}
		}
	})

	t.Run("float timestamps", func(t *testing.T) {
		got, err := arclight.DecodePostIndex([]byte(`[{"timestamp":1700000000000.0,"soundeffect":"sfx-1"}]`))
		if err != nil {
			t.Fatalf("DecodePostIndex() error = %v", err)
		}
		want := arclight.PostEntry{Kind: arclight.ReleaseSoundEffect, ID: "sfx-1", Timestamp: 1700000000000}
		if len(got) != 1 || got[0] != want {
			t.Errorf("DecodePostIndex() = %+v, want [%+v]", got, want)
		}
	})

	t.Run("malformed entries", func(t *testing.T) {
		bad := []string{
			`{"single":"x"}`,
			`[{"timestamp":1}]`,
			`[{"single":"a","album":"b","timestamp":1}]`,
			`[{"mixtape":"a","timestamp":1}]`,
			`[{"single":7,"timestamp":1}]`,
			`[{"single":"a","timestamp":"soon"}]`,
		}
		for _, in := range bad {
			if _, err := arclight.DecodePostIndex([]byte(in)); err == nil {
				t.Errorf("DecodePostIndex(%s) expected error", in)
			}
		}
	})
}
