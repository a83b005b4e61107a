package arclight

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// Author is the identity stamped onto every record via the Author-* tags.
type Author struct {
	Address  Address
	Username string
}

// Attr is a kind-specific tag whose value has not been encoded yet.
type Attr struct {
	Key   string
	Value any
}

// A is shorthand for constructing an Attr.
func A(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Builder assembles unsigned records. It performs no I/O; the clock only
// supplies the Unix-Time tag.
type Builder struct {
	namespaces Namespaces
	clock      Clock
}

// NewBuilder creates a Builder writing into the given namespaces.
func NewBuilder(namespaces Namespaces, clock Clock) *Builder {
	return &Builder{namespaces: namespaces, clock: clock}
}

// Build merges the mandatory namespace, kind, time and author tags with attrs
// and returns the record ready for submission. The mandatory tags come first
// in a fixed order, followed by attrs in caller order.
func (b *Builder) Build(payload []byte, kind Kind, author Author, attrs ...Attr) (*UnsignedRecord, error) {
	return b.build(unixMillis(b.clock.Now()), payload, kind, author, attrs)
}

// BuildSuccessor builds a record that supersedes prev. Its Unix-Time is at
// least one millisecond past prev's, so readers ordering by time pick it
// even when the clock has not moved or runs behind. A nil prev behaves like
// Build.
func (b *Builder) BuildSuccessor(prev *RecordMeta, payload []byte, kind Kind, author Author, attrs ...Attr) (*UnsignedRecord, error) {
	ms := unixMillis(b.clock.Now())
	if prev != nil {
		ms = max(ms, prev.Tags.UnixTime()+1)
	}
	return b.build(ms, payload, kind, author, attrs)
}

func (b *Builder) build(ms int64, payload []byte, kind Kind, author Author, attrs []Attr) (*UnsignedRecord, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if author.Address == "" {
		return nil, fmt.Errorf("%w: author address is empty", ErrInvalidTagValue)
	}
	if !utf8.ValidString(author.Username) {
		return nil, fmt.Errorf("%w: author username is not valid UTF-8", ErrInvalidTagValue)
	}

	tags := make(Tags, 0, 5+len(attrs))
	tags = append(tags,
		Tag{Name: TagAppName, Value: b.namespaces.namespaceFor(kind)},
		Tag{Name: TagType, Value: string(kind)},
		Tag{Name: TagUnixTime, Value: strconv.FormatInt(ms, 10)},
		Tag{Name: TagAuthorAddress, Value: string(author.Address)},
		Tag{Name: TagAuthorUsername, Value: author.Username},
	)

	seen := make(map[string]struct{}, len(attrs))
	for _, attr := range attrs {
		if attr.Key == "" || !utf8.ValidString(attr.Key) {
			return nil, fmt.Errorf("%w: tag name %q", ErrInvalidTagValue, attr.Key)
		}
		if _, ok := reservedTags[attr.Key]; ok {
			return nil, fmt.Errorf("%w: %s is reserved", ErrInvalidTagValue, attr.Key)
		}
		if _, ok := seen[attr.Key]; ok {
			return nil, fmt.Errorf("%w: duplicate tag %s", ErrInvalidTagValue, attr.Key)
		}
		seen[attr.Key] = struct{}{}

		value, err := EncodeTagValue(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding tag %s: %w", attr.Key, err)
		}
		tags = append(tags, Tag{Name: attr.Key, Value: value})
	}

	if payload == nil {
		payload = []byte{}
	}
	return &UnsignedRecord{Payload: payload, Tags: tags}, nil
}

// EncodeTagValue converts a scalar into its tag string form. Strings must be
// valid UTF-8; floats must be finite. Any other type is rejected.
func EncodeTagValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		if !utf8.ValidString(x) {
			return "", fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidTagValue)
		}
		return x, nil
	case json.Number:
		if _, err := x.Float64(); err != nil {
			return "", fmt.Errorf("%w: %q is not a number", ErrInvalidTagValue, string(x))
		}
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidTagValue, v)
	}
}

func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: non-finite number", ErrInvalidTagValue)
	}
	return strconv.FormatFloat(f, 'f', -1, bits), nil
}
