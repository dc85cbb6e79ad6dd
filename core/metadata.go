package core

import (
	"fmt"
	"maps"
)

// Metadata maps string keys to scalar values. Stored values are always one
// of string, int64, float64 or bool; see NormalizeMetadata.
type Metadata map[string]any

// Clone returns a shallow copy of m. Values are scalars so the copy is
// independent of the original.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	return maps.Clone(m)
}

// String returns the value under key as a string, or "" if absent or not a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Int returns the value under key as an int64 if it holds any integer type.
func (m Metadata) Int(key string) (int64, bool) {
	v, err := NormalizeValue(m[key])
	if err != nil {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// NormalizeValue widens a scalar to its canonical stored type.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case string, int64, float64, bool:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float32:
		return float64(x), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidMetadataValue, v)
	}
}

// NormalizeMetadata returns a copy of m with every value widened to its
// canonical type. It fails on non-scalar values.
func NormalizeMetadata(m Metadata) (Metadata, error) {
	out := make(Metadata, len(m))
	for k, v := range m {
		nv, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}
