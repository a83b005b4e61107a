package arclight_test

import (
	"errors"
	"testing"

	"arclight-go/internal/arclight"
)

func TestNamespaces_KindQuery(t *testing.T) {
	ns := arclight.DefaultNamespaces()

	tests := []struct {
		kind arclight.Kind
		want string
	}{
		{arclight.KindSingleInfo, "(App-Name=arclight-test and Type=single-info)"},
		{arclight.KindProfileWebsite, "(App-Name=arclight-test and Type=profile-website)"},
		{arclight.KindName, "(App-Name=arweave-id and Type=name)"},
	}
	for _, tt := range tests {
		q, err := ns.KindQuery(tt.kind)
		if err != nil {
			t.Fatalf("KindQuery(%s) error = %v", tt.kind, err)
		}
		if q.String() != tt.want {
			t.Errorf("KindQuery(%s) = %s, want %s", tt.kind, q, tt.want)
		}
	}

	q, err := ns.OwnedKindQuery("me", arclight.KindPostInfo)
	if err != nil {
		t.Fatalf("OwnedKindQuery() error = %v", err)
	}
	if want := "(from=me and (App-Name=arclight-test and Type=post-info))"; q.String() != want {
		t.Errorf("OwnedKindQuery() = %s, want %s", q, want)
	}

	if _, err := ns.KindQuery("profile-twitter"); !errors.Is(err, arclight.ErrUnknownRecordKind) {
		t.Errorf("KindQuery(profile-twitter) error = %v, want ErrUnknownRecordKind", err)
	}
}

func TestNamespaces_Validate(t *testing.T) {
	if err := arclight.DefaultNamespaces().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := (arclight.Namespaces{App: "a", Identity: "b"}).Validate(); err == nil {
		t.Error("Validate() expected error for missing avatar namespace")
	}
}

func TestTags(t *testing.T) {
	tags := arclight.Tags{
		{Name: "Type", Value: "avatar"},
		{Name: "Unix-Time", Value: "1700000000000"},
	}
	if kind, err := tags.Kind(); err != nil || kind != arclight.KindAvatar {
		t.Errorf("Kind() = %s, %v", kind, err)
	}
	if got := tags.UnixTime(); got != 1700000000000 {
		t.Errorf("UnixTime() = %d", got)
	}
	if _, ok := tags.Get("Genre"); ok {
		t.Error("Get(Genre) found a missing tag")
	}

	bad := arclight.Tags{{Name: "Type", Value: "mixtape"}, {Name: "Unix-Time", Value: "soon"}}
	if _, err := bad.Kind(); !errors.Is(err, arclight.ErrUnknownRecordKind) {
		t.Errorf("Kind() error = %v, want ErrUnknownRecordKind", err)
	}
	if got := bad.UnixTime(); got != 0 {
		t.Errorf("UnixTime() = %d, want 0", got)
	}
}

func TestParseProfileField(t *testing.T) {
	for _, f := range arclight.ProfileFields {
		got, err := arclight.ParseProfileField(string(f))
		if err != nil || got != f {
			t.Errorf("ParseProfileField(%s) = %s, %v", f, got, err)
		}
	}
	if _, err := arclight.ParseProfileField("twitter"); !errors.Is(err, arclight.ErrUnknownRecordKind) {
		t.Errorf("ParseProfileField(twitter) error = %v, want ErrUnknownRecordKind", err)
	}
}
