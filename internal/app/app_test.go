package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"arclight-go/internal/arclight"
	"arclight-go/internal/config"
	"arclight-go/internal/encryption"
	"arclight-go/internal/testutil"
)

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.NewConfig(dir)
	cfg.Ledger = config.LedgerConfig{Type: "memory", ChunkSize: 8}
	cfg.Journal = config.JournalConfig{Type: "sqlite", DataDir: filepath.Join(dir, "data")}
	cfg.Encryption = config.EncryptionConfig{Type: "test"}

	if err := testutil.NewTestKey("app").WriteFile(cfg.Wallet.KeyPath); err != nil {
		t.Fatalf("writing wallet: %v", err)
	}

	var snapshots []Snapshot
	a, err := NewApp(context.Background(), cfg, Options{
		Command:    "test",
		OnProgress: func(s Snapshot) { snapshots = append(snapshots, s) },
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, dir
}

func writeSingle(t *testing.T, dir string) string {
	t.Helper()
	files := map[string]string{
		"cover.png":   "\x89PNG\r\n\x1a\ncover",
		"song.flac":   "fLaC song bytes",
		"single.toml": "kind = \"single\"\ntitle = \"Morning\"\ngenre = \"Ambient\"\nprice = 2\ncover = \"cover.png\"\nfile = \"song.flac\"\n",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return filepath.Join(dir, "single.toml")
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Ledger.Type = "tape"
	if _, err := NewApp(context.Background(), cfg, Options{}); err == nil {
		t.Fatal("NewApp() expected error for invalid config")
	}
}

func TestApp_Whoami(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	author, id, err := a.Whoami(ctx)
	if err != nil {
		t.Fatalf("Whoami() error = %v", err)
	}
	if author.Address != testutil.AddressOf(testutil.NewTestKey("app")) {
		t.Errorf("Address = %s", author.Address)
	}
	if id.Kind != arclight.IdentityGuest {
		t.Errorf("Identity = %+v, want guest", id)
	}

	if _, err := a.SetProfile(ctx, "name", "dawn-chorus"); err != nil {
		t.Fatalf("SetProfile(name) error = %v", err)
	}
	_, id, err = a.Whoami(ctx)
	if err != nil {
		t.Fatalf("Whoami() error = %v", err)
	}
	if id.DisplayName != "dawn-chorus" {
		t.Errorf("DisplayName = %q", id.DisplayName)
	}
}

func TestApp_SetProfile(t *testing.T) {
	a, dir := newTestApp(t)
	ctx := context.Background()

	avatar := filepath.Join(dir, "me.png")
	if err := os.WriteFile(avatar, []byte("\x89PNG\r\n\x1a\nme"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := a.SetProfile(ctx, "avatar", avatar); err != nil {
		t.Fatalf("SetProfile(avatar) error = %v", err)
	}
	if _, err := a.SetProfile(ctx, "location", "Lisbon"); err != nil {
		t.Fatalf("SetProfile(location) error = %v", err)
	}
	if _, err := a.SetProfile(ctx, "twitter", "x"); !errors.Is(err, arclight.ErrUnknownRecordKind) {
		t.Errorf("SetProfile(twitter) error = %v, want ErrUnknownRecordKind", err)
	}

	p, err := a.Profile(ctx, "")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if !p.HasAvatar || p.Location != "Lisbon" {
		t.Errorf("Profile() = %+v", p)
	}
}

func TestApp_PublishAndRead(t *testing.T) {
	a, dir := newTestApp(t)
	ctx := context.Background()

	res, err := a.Publish(ctx, arclight.ReleaseSingle, writeSingle(t, dir))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if a.View().Snapshot().State != arclight.StateComplete {
		t.Errorf("view state = %v, want complete", a.View().Snapshot().State)
	}

	posts, err := a.Posts(ctx, "")
	if err != nil {
		t.Fatalf("Posts() error = %v", err)
	}
	if len(posts) != 1 || posts[0].ID != res.InfoID {
		t.Errorf("Posts() = %+v", posts)
	}

	ids, err := a.Releases(ctx, "single", "Ambient")
	if err != nil {
		t.Fatalf("Releases() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != res.InfoID {
		t.Errorf("Releases() = %v", ids)
	}
	if _, err := a.Releases(ctx, "mixtape", ""); err == nil {
		t.Error("Releases(mixtape) expected error")
	}

	info, err := a.Release(ctx, string(res.InfoID))
	if err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if info.Title != "Morning" || info.Media[0].ID != res.Media[0].ID {
		t.Errorf("Release() = %+v", info)
	}

	t.Run("fetch cover needs no passphrase", func(t *testing.T) {
		media, err := a.Fetch(ctx, string(res.CoverID), func() (string, error) {
			t.Error("passphrase requested for a cover")
			return "", nil
		})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if media.ContentType != "image/png" {
			t.Errorf("ContentType = %q", media.ContentType)
		}
	})

	t.Run("fetch media decrypts", func(t *testing.T) {
		asked := false
		media, err := a.Fetch(ctx, string(res.Media[0].ID), func() (string, error) {
			asked = true
			return "secret", nil
		})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if !asked {
			t.Error("passphrase not requested for media")
		}
		if string(media.Data) != "fLaC song bytes" || media.ContentType != "audio/flac" {
			t.Errorf("Fetch() = %q %q", media.Data, media.ContentType)
		}
	})

	t.Run("history lists the publish", func(t *testing.T) {
		entries, err := a.History(10)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("History() = %d entries, want 1", len(entries))
		}
		e := entries[0]
		if e.Operation.Name != "single" || e.Operation.State != arclight.StateComplete || len(e.Records) != 4 {
			t.Errorf("History()[0] = %+v with %d records", e.Operation, len(e.Records))
		}
		if e.Orphaned() {
			t.Error("completed publish reported as orphaned")
		}
	})
}

func TestApp_PublishKindMismatch(t *testing.T) {
	a, dir := newTestApp(t)
	if _, err := a.Publish(context.Background(), arclight.ReleaseAlbum, writeSingle(t, dir)); err == nil {
		t.Fatal("Publish() expected error for kind mismatch")
	}
}

func TestApp_MissingWallet(t *testing.T) {
	a, _ := newTestApp(t)
	a.cfg.Wallet.KeyPath = filepath.Join(t.TempDir(), "missing.json")
	a.key = nil

	if _, err := a.Address(); err == nil {
		t.Fatal("Address() expected error for missing wallet")
	}
	if _, err := a.Posts(context.Background(), "someone-else"); err != nil {
		t.Errorf("Posts() with explicit address error = %v", err)
	}
}

func TestNamespacesFromConfig(t *testing.T) {
	ns := namespacesFromConfig(config.NamespaceConfig{App: "arclight-staging"})
	if ns.App != "arclight-staging" || ns.Identity != "arweave-id" || ns.Avatar != "arweave-avatar" {
		t.Errorf("namespacesFromConfig() = %+v", ns)
	}
}

func TestHistoryEntry_Orphaned(t *testing.T) {
	failed := &arclight.Operation{Error: "ledger unavailable"}
	recs := []arclight.SubmittedRecord{{ID: "cover"}}

	if !(HistoryEntry{Operation: failed, Records: recs}).Orphaned() {
		t.Error("failed publish with records not orphaned")
	}
	if (HistoryEntry{Operation: failed}).Orphaned() {
		t.Error("failed publish without records reported orphaned")
	}
}

func TestApp_FetchWrongPassphrase(t *testing.T) {
	a, dir := newTestApp(t)
	ctx := context.Background()

	if err := a.SetupEncryption("right"); err == nil {
		t.Error("SetupEncryption() expected error for configured keys")
	}
	if err := a.encryptor.Setup("right"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	res, err := a.Publish(ctx, arclight.ReleaseSingle, writeSingle(t, dir))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	_, err = a.Fetch(ctx, string(res.Media[0].ID), func() (string, error) { return "wrong", nil })
	if !errors.Is(err, encryption.ErrWrongPassphrase) {
		t.Errorf("Fetch() error = %v, want ErrWrongPassphrase", err)
	}
}
