package arclight

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PostEntry is one element of an author's post index.
type PostEntry struct {
	Kind      ReleaseKind
	ID        RecordID
	Timestamp int64 // Unix milliseconds
}

// MarshalJSON writes the entry as {"<kind>": "<id>", "timestamp": <ms>}.
func (e PostEntry) MarshalJSON() ([]byte, error) {
	kind, err := json.Marshal(string(e.Kind))
	if err != nil {
		return nil, err
	}
	id, err := json.Marshal(string(e.ID))
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteByte('{')
	b.Write(kind)
	b.WriteByte(':')
	b.Write(id)
	b.WriteString(`,"timestamp":`)
	b.WriteString(strconv.FormatInt(e.Timestamp, 10))
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON accepts exactly one release-kind key plus "timestamp".
func (e *PostEntry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var entry PostEntry
	for key, raw := range fields {
		if key == "timestamp" {
			var ts json.Number
			if err := json.Unmarshal(raw, &ts); err != nil {
				return fmt.Errorf("post entry timestamp: %w", err)
			}
			ms, err := ts.Int64()
			if err != nil {
				f, ferr := ts.Float64()
				if ferr != nil {
					return fmt.Errorf("post entry timestamp: %w", err)
				}
				ms = int64(f)
			}
			entry.Timestamp = ms
			continue
		}
		kind, err := ParseReleaseKind(key)
		if err != nil {
			return err
		}
		if entry.Kind != "" {
			return fmt.Errorf("post entry names two releases: %s and %s", entry.Kind, kind)
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return fmt.Errorf("post entry %s id: %w", kind, err)
		}
		entry.Kind = kind
		entry.ID = RecordID(id)
	}
	if entry.Kind == "" {
		return fmt.Errorf("post entry names no release")
	}
	*e = entry
	return nil
}

// EncodePostIndex renders the full index payload.
func EncodePostIndex(entries []PostEntry) ([]byte, error) {
	if entries == nil {
		entries = []PostEntry{}
	}
	return json.Marshal(entries)
}

// DecodePostIndex parses an index payload. An empty payload is an empty index.
func DecodePostIndex(data []byte) ([]PostEntry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []PostEntry{}, nil
	}
	var entries []PostEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding post index: %w", err)
	}
	if entries == nil {
		entries = []PostEntry{}
	}
	return entries, nil
}
