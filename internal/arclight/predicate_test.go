package arclight_test

import (
	"encoding/json"
	"errors"
	"testing"

	"arclight-go/internal/arclight"
)

func TestPredicate_Match(t *testing.T) {
	tags := arclight.Tags{
		{Name: "App-Name", Value: "arclight-test"},
		{Name: "Type", Value: "single-info"},
		{Name: "Genre", Value: "Rock"},
	}
	owner := arclight.Address("owner-1")

	tests := []struct {
		name string
		q    *arclight.Predicate
		want bool
	}{
		{"equal tag", arclight.Equals("Genre", "Rock"), true},
		{"different value", arclight.Equals("Genre", "Jazz"), false},
		{"missing tag", arclight.Equals("Category", "Rock"), false},
		{"values are case sensitive", arclight.Equals("Genre", "rock"), false},
		{"owner", arclight.From(owner), true},
		{"other owner", arclight.From("owner-2"), false},
		{"and", arclight.And(arclight.From(owner), arclight.Equals("Type", "single-info")), true},
		{"and with miss", arclight.And(arclight.From(owner), arclight.Equals("Type", "album-info")), false},
		{"or with miss", arclight.Or(arclight.Equals("Type", "album-info"), arclight.Equals("Genre", "Rock")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Match(owner, tags); got != tt.want {
				t.Errorf("Match(%s) = %v, want %v", tt.q, got, tt.want)
			}
		})
	}
}

func TestPredicate_Eval(t *testing.T) {
	index := map[string]arclight.IDSet{
		"Type=a":  {"1": {}, "2": {}, "3": {}},
		"Genre=x": {"2": {}, "4": {}},
		"from=me": {"3": {}, "4": {}},
	}
	lookup := func(key, value string) (arclight.IDSet, error) {
		return index[key+"="+value], nil
	}

	tests := []struct {
		name string
		q    *arclight.Predicate
		want []arclight.RecordID
	}{
		{"leaf", arclight.Equals("Type", "a"), []arclight.RecordID{"1", "2", "3"}},
		{"and", arclight.And(arclight.Equals("Type", "a"), arclight.Equals("Genre", "x")), []arclight.RecordID{"2"}},
		{"or", arclight.Or(arclight.Equals("Genre", "x"), arclight.From("me")), []arclight.RecordID{"2", "3", "4"}},
		{"empty and", arclight.And(arclight.Equals("Type", "b"), arclight.From("me")), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.q.Eval(lookup)
			if err != nil {
				t.Fatalf("Eval() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Eval() = %v, want %v", got, tt.want)
			}
			for _, id := range tt.want {
				if _, ok := got[id]; !ok {
					t.Errorf("Eval() missing %s", id)
				}
			}
		})
	}

	t.Run("lookup error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := arclight.Or(arclight.Equals("Type", "a"), arclight.Equals("Genre", "x")).Eval(func(string, string) (arclight.IDSet, error) {
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("Eval() error = %v, want %v", err, boom)
		}
	})
}

func TestPredicate_Validate(t *testing.T) {
	valid := arclight.And(arclight.Equals("Type", "a"), arclight.Or(arclight.From("me"), arclight.Equals("Genre", "x")))
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	invalid := []*arclight.Predicate{
		nil,
		arclight.Equals("", "x"),
		arclight.And(arclight.Equals("Type", "a"), nil),
		{Op: "xor"},
	}
	for _, q := range invalid {
		if err := q.Validate(); err == nil {
			t.Errorf("Validate(%#v) expected error", q)
		}
	}
}

func TestPredicate_MarshalJSON(t *testing.T) {
	q := arclight.And(arclight.Equals("App-Name", "arclight-test"), arclight.From("owner"))

	got, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"op":"and","expr1":{"op":"equals","expr1":"App-Name","expr2":"arclight-test"},"expr2":{"op":"equals","expr1":"from","expr2":"owner"}}`
	if string(got) != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}
