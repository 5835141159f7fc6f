package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// ID represents a JSON-RPC ID which must be either a string or number.
// The zero value is the null id.
type ID struct {
	value any
}

// NewID creates a JSON-RPC ID from a string or number
func NewID(id any) (ID, error) {
	switch v := id.(type) {
	case ID:
		return v, nil
	case string:
		return ID{value: v}, nil
	case int:
		return ID{value: int64(v)}, nil
	case int32:
		return ID{value: int64(v)}, nil
	case int64:
		return ID{value: v}, nil
	case float64:
		return ID{value: int64(v)}, nil
	case nil:
		return ID{}, fmt.Errorf("id cannot be null")
	default:
		return ID{}, fmt.Errorf("id must be string or number, got %T", id)
	}
}

// Int64ID is NewID for the integer ids a Session allocates.
func Int64ID(n int64) ID {
	return ID{value: n}
}

func (id ID) Value() any {
	return id.value
}

func (id ID) IsNil() bool {
	return id.value == nil
}

// Equal compares two IDs for equality
func (id ID) Equal(other any) bool {
	switch v := other.(type) {
	case ID:
		return id.value == v.value
	default:
		o, err := NewID(v)
		if err != nil {
			return false
		}
		return id.value == o.value
	}
}

// Key returns a string usable as a map key. String and numeric ids never
// collide: "1" and 1 produce different keys.
func (id ID) Key() string {
	return id.GoString()
}

var _ fmt.GoStringer = ID{}

// GoString implements fmt.GoStringer
func (id ID) GoString() string {
	switch v := id.value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

var _ fmt.Stringer = ID{}

func (id ID) String() string {
	if s, ok := id.value.(string); ok {
		return s
	}
	return id.GoString()
}

var _ json.Marshaler = ID{}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

var _ json.Unmarshaler = &ID{}

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		id.value = v
		return nil
	case float64: // JSON numbers are decoded as float64
		if v != float64(int64(v)) {
			return fmt.Errorf("id must be an integer, got %v", v)
		}
		id.value = int64(v)
		return nil
	case nil:
		id.value = nil
		return nil
	default:
		return fmt.Errorf("id must be string or number, got %T", raw)
	}
}
