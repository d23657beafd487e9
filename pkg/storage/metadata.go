package storage

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// Metadata is a flat map of scalar values (string, bool, int64 or float64)
// stored next to each record.
type Metadata map[string]any

// String returns the string value at key, or "" when absent or not a string.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Bool returns the bool value at key. Values that went through a backend
// that cannot store booleans natively ("true", 1) are accepted too.
func (m Metadata) Bool(key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// Clone returns a shallow copy of m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	return maps.Clone(m)
}

// Merge returns a copy of m with every key of partial applied on top.
func (m Metadata) Merge(partial Metadata) Metadata {
	merged := m.Clone()
	maps.Copy(merged, partial)
	return merged
}

// Filter is a conjunction of equality constraints on metadata keys.
type Filter map[string]any

// Keys returns the filter keys in a stable order.
func (f Filter) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// Matches reports whether every constraint in f holds for m.
func (f Filter) Matches(m Metadata) bool {
	for k, want := range f {
		got, ok := m[k]
		if !ok {
			return false
		}
		if Stringify(got) != Stringify(want) {
			return false
		}
	}
	return true
}

// Stringify renders a metadata scalar the way backends that only store
// strings persist it.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

// CosineDistance returns 1 - cos(a, b). Vectors of different length or with
// zero magnitude are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1.0
	}

	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
