package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"arclight-go/internal/arclight"
)

func TestNewFileSystemLedger(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ledger")

	l, err := NewFileSystemLedger(root, &seqAnchors{}, 0)
	if err != nil {
		t.Fatalf("NewFileSystemLedger() error = %v", err)
	}
	if err := l.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
	for _, dir := range []string{"data", "meta"} {
		if info, err := os.Stat(filepath.Join(root, dir)); err != nil || !info.IsDir() {
			t.Errorf("%s directory missing: %v", dir, err)
		}
	}
}

func TestFileSystemLedger_ValidateSetupMissingDir(t *testing.T) {
	root := t.TempDir()
	l, err := NewFileSystemLedger(root, &seqAnchors{}, 0)
	if err != nil {
		t.Fatalf("NewFileSystemLedger() error = %v", err)
	}
	if err := os.RemoveAll(filepath.Join(root, "meta")); err != nil {
		t.Fatal(err)
	}
	if err := l.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for missing meta directory")
	}
}

func TestFileSystemLedger_PersistsAcrossInstances(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	first, err := NewFileSystemLedger(root, &seqAnchors{}, 0)
	if err != nil {
		t.Fatalf("NewFileSystemLedger() error = %v", err)
	}
	id, err := first.Submit(ctx, testRecord("kept", "Type", "name"), testKey("alice"), nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	second, err := NewFileSystemLedger(root, &seqAnchors{}, 0)
	if err != nil {
		t.Fatalf("NewFileSystemLedger() error = %v", err)
	}
	data, err := second.FetchRecordData(ctx, id)
	if err != nil {
		t.Fatalf("FetchRecordData() error = %v", err)
	}
	if string(data) != "kept" {
		t.Errorf("FetchRecordData() = %q, want %q", data, "kept")
	}
}

func TestFileSystemLedger_DataWithoutMetaIsUnconfirmed(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	l, err := NewFileSystemLedger(root, &seqAnchors{}, 0)
	if err != nil {
		t.Fatalf("NewFileSystemLedger() error = %v", err)
	}
	id, err := l.Submit(ctx, testRecord("x", "Type", "name"), testKey("alice"), nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := os.Remove(filepath.Join(root, "meta", string(id)+metaSuffix)); err != nil {
		t.Fatal(err)
	}

	if _, err := l.FetchRecordData(ctx, id); !errors.Is(err, arclight.ErrNotFound) {
		t.Errorf("FetchRecordData() error = %v, want ErrNotFound", err)
	}
	ids, err := l.Query(ctx, arclight.Equals("Type", "name"))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Query() = %v, want none", ids)
	}
}

func TestFileSystemLedger_NoTempFilesLeft(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	l, err := NewFileSystemLedger(root, &seqAnchors{}, 2)
	if err != nil {
		t.Fatalf("NewFileSystemLedger() error = %v", err)
	}

	cancel()
	if _, err := l.Submit(ctx, testRecord("abcdef", "Type", "name"), testKey("alice"), nil); err == nil {
		t.Fatal("Submit() expected error after cancel")
	}

	for _, dir := range []string{"data", "meta"} {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("%s holds %d entries after failed submit, want 0", dir, len(entries))
		}
	}
}
