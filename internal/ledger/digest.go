package ledger

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"arclight-go/internal/arclight"
)

// DefaultChunkSize matches the 256 KiB chunks public gateways accept.
const DefaultChunkSize = 256 << 10

// canonical is the deterministic encoding a record id is derived from. The
// anchor makes ids unpredictable before submission even for identical
// payloads.
type canonical struct {
	Owner   arclight.Address `cbor:"1,keyasint"`
	Tags    arclight.Tags    `cbor:"2,keyasint"`
	Payload [32]byte         `cbor:"3,keyasint"`
	Size    int64            `cbor:"4,keyasint"`
	Anchor  string           `cbor:"5,keyasint"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor: building deterministic encoder: %v", err))
	}
	return em
}()

// recordID derives the id of rec as the unpadded base64url blake3 digest of
// its canonical encoding.
func recordID(owner arclight.Address, rec *arclight.UnsignedRecord, anchor string) (arclight.RecordID, error) {
	c := canonical{
		Owner:   owner,
		Tags:    rec.Tags,
		Payload: blake3.Sum256(rec.Payload),
		Size:    int64(len(rec.Payload)),
		Anchor:  anchor,
	}
	b, err := encMode.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}
	sum := blake3.Sum256(b)
	return arclight.RecordID(base64.RawURLEncoding.EncodeToString(sum[:])), nil
}

func marshalMeta(meta *arclight.RecordMeta) ([]byte, error) {
	return encMode.Marshal(meta)
}

func unmarshalMeta(b []byte) (*arclight.RecordMeta, error) {
	var meta arclight.RecordMeta
	if err := cbor.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("decoding record metadata: %w", err)
	}
	return &meta, nil
}

// checkRecord applies the rules every backend enforces before accepting a
// record.
func checkRecord(rec *arclight.UnsignedRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", arclight.ErrLedgerRejected)
	}
	if len(rec.Tags) == 0 {
		return fmt.Errorf("%w: record has no tags", arclight.ErrLedgerRejected)
	}
	seen := make(map[string]struct{}, len(rec.Tags))
	for _, t := range rec.Tags {
		if t.Name == "" {
			return fmt.Errorf("%w: empty tag name", arclight.ErrLedgerRejected)
		}
		if _, ok := seen[t.Name]; ok {
			return fmt.Errorf("%w: duplicate tag %s", arclight.ErrLedgerRejected, t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// unavailable wraps a transport or context failure.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, arclight.ErrLedgerUnavailable, err)
}

// uploadChunks calls write for consecutive chunks of size bytes, reporting
// the cumulative percentage after each one. An empty payload reports 100
// once. The context is checked before every chunk.
func uploadChunks(ctx context.Context, total, chunkSize int, progress func(int), write func(start, end int) error) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if progress == nil {
		progress = func(int) {}
	}
	progress(0)
	if total == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress(100)
		return nil
	}
	for start := 0; start < total; start += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+chunkSize, total)
		if err := write(start, end); err != nil {
			return err
		}
		progress(end * 100 / total)
	}
	return nil
}

// validID reports whether id has the shape of a derived record id. Ids reach
// the backends from user input and end up in file and object paths.
func validID(id arclight.RecordID) bool {
	if id == "" {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
