package segment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// IDKey is the first key of every serialization; its value is the segment tag.
const IDKey = "ID"

// Field is one key/value pair of a serialized segment.
type Field struct {
	Key   string
	Value string
}

// Fields is an ordered serialization: ID first, then <tag>01, <tag>02, ...
// Encodes to a JSON object whose key order is the slice order.
type Fields []Field

// ElementKey formats the tag+index key for a position, zero-padded to two
// digits ("GS02"); positions >= 100 widen naturally ("XX100").
func ElementKey(tag string, index int) string {
	return fmt.Sprintf("%s%02d", tag, index)
}

// Serialize returns the ordered key/value representation of the segment.
// Read-only; reflects element state at call time.
func (s *Segment) Serialize() Fields {
	tag := s.ID()
	out := make(Fields, 0, len(s.elements))
	out = append(out, Field{Key: IDKey, Value: tag})
	for i := 1; i < len(s.elements); i++ {
		out = append(out, Field{Key: ElementKey(tag, i), Value: s.elements[i]})
	}
	return out
}

// Keys returns the keys in emission order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, field := range f {
		keys[i] = field.Key
	}
	return keys
}

// Lookup returns the value for key and whether it was present.
func (f Fields) Lookup(key string) (string, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

// MarshalJSON implements json.Marshaler, preserving field order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
// Reads the object token by token so key order survives the round trip.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected JSON object, got %v", tok)
	}

	out := Fields{}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fields: expected string key, got %v", tok)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("fields: duplicate key %q", key)
		}
		seen[key] = struct{}{}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("fields: value for %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}
