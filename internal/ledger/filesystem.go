package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"arclight-go/internal/arclight"
	"arclight-go/internal/wallet"
)

const metaSuffix = ".cbor"

// FileSystemLedger stores records as files:
//
//	<root>/
//	  data/
//	    <id>           (payload bytes)
//	  meta/
//	    <id>.cbor      (owner, tags and size; written last)
//
// A record becomes visible once its metadata file exists.
type FileSystemLedger struct {
	root      string
	dataDir   string
	metaDir   string
	anchors   arclight.IDGenerator
	chunkSize int
}

// NewFileSystemLedger creates a filesystem ledger rooted at the given path.
func NewFileSystemLedger(root string, anchors arclight.IDGenerator, chunkSize int) (*FileSystemLedger, error) {
	dataDir := filepath.Join(root, "data")
	metaDir := filepath.Join(root, "meta")

	for _, dir := range []string{dataDir, metaDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	return &FileSystemLedger{
		root:      root,
		dataDir:   dataDir,
		metaDir:   metaDir,
		anchors:   anchors,
		chunkSize: chunkSize,
	}, nil
}

func (l *FileSystemLedger) DeriveAddress(key arclight.Key) (arclight.Address, error) {
	return wallet.Address(key)
}

func (l *FileSystemLedger) Submit(ctx context.Context, rec *arclight.UnsignedRecord, key arclight.Key, progress func(int)) (arclight.RecordID, error) {
	if err := checkRecord(rec); err != nil {
		return "", err
	}
	owner, err := l.DeriveAddress(key)
	if err != nil {
		return "", err
	}
	id, err := recordID(owner, rec, l.anchors.New())
	if err != nil {
		return "", err
	}

	err = l.writeFile(filepath.Join(l.dataDir, string(id)), func(f *os.File) error {
		return uploadChunks(ctx, len(rec.Payload), l.chunkSize, progress, func(start, end int) error {
			_, err := f.Write(rec.Payload[start:end])
			return err
		})
	})
	if err != nil {
		return "", unavailable("writing record data", err)
	}

	meta, err := marshalMeta(&arclight.RecordMeta{ID: id, Owner: owner, Tags: rec.Tags, Size: int64(len(rec.Payload))})
	if err != nil {
		return "", err
	}
	err = l.writeFile(filepath.Join(l.metaDir, string(id)+metaSuffix), func(f *os.File) error {
		_, err := f.Write(meta)
		return err
	})
	if err != nil {
		return "", unavailable("writing record metadata", err)
	}
	return id, nil
}

func (l *FileSystemLedger) FetchRecord(ctx context.Context, id arclight.RecordID) (*arclight.RecordMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetching record", err)
	}
	b, err := l.readFile(filepath.Join(l.metaDir, string(id)+metaSuffix), id)
	if err != nil {
		return nil, err
	}
	return unmarshalMeta(b)
}

func (l *FileSystemLedger) FetchRecordData(ctx context.Context, id arclight.RecordID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetching record data", err)
	}
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", arclight.ErrNotFound, id)
	}
	// Data without metadata is an unconfirmed upload.
	if _, err := os.Stat(filepath.Join(l.metaDir, string(id)+metaSuffix)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", arclight.ErrNotFound, id)
		}
		return nil, unavailable("fetching record data", err)
	}
	return l.readFile(filepath.Join(l.dataDir, string(id)), id)
}

// Query scans every metadata file. Matches are returned sorted by id.
func (l *FileSystemLedger) Query(ctx context.Context, q *arclight.Predicate) ([]arclight.RecordID, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", arclight.ErrLedgerRejected, err)
	}
	entries, err := os.ReadDir(l.metaDir)
	if err != nil {
		return nil, unavailable("listing records", err)
	}

	ids := []arclight.RecordID{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, unavailable("querying", err)
		}
		id := arclight.RecordID(strings.TrimSuffix(name, metaSuffix))
		b, err := l.readFile(filepath.Join(l.metaDir, name), id)
		if err != nil {
			return nil, err
		}
		meta, err := unmarshalMeta(b)
		if err != nil {
			return nil, err
		}
		if q.Match(meta.Owner, meta.Tags) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ValidateSetup verifies that the ledger directories are accessible.
func (l *FileSystemLedger) ValidateSetup() error {
	for _, dir := range []string{l.root, l.dataDir, l.metaDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("ledger directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("ledger path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile fills a temp file in the destination directory and renames it
// into place, so readers never observe partial files.
func (l *FileSystemLedger) writeFile(destPath string, fill func(*os.File) error) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := fill(tmpFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (l *FileSystemLedger) readFile(path string, id arclight.RecordID) ([]byte, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", arclight.ErrNotFound, id)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", arclight.ErrNotFound, id)
		}
		return nil, unavailable("reading record", err)
	}
	return b, nil
}

// Compile-time check that FileSystemLedger implements arclight.Ledger
var _ arclight.Ledger = (*FileSystemLedger)(nil)
