package docstore

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Validate checks that a filter is well formed.
func (f Filter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("%w: empty field", ErrInvalidFilter)
	}
	switch f.Op {
	case OpEq, OpLt, OpLte, OpGt, OpGte:
		return nil
	case OpIn:
		if _, ok := InValues(f.Value); !ok {
			return fmt.Errorf("%w: %q requires a slice value, got %T", ErrInvalidFilter, f.Field, f.Value)
		}
		return nil
	case OpExists:
		return nil
	default:
		return fmt.Errorf("%w: unsupported operator %q", ErrInvalidFilter, f.Op)
	}
}

// Matches reports whether data satisfies the filter. Values of different
// kinds never match, except that all numeric types compare numerically.
func (f Filter) Matches(data map[string]any) bool {
	v, present := data[f.Field]
	if f.Op == OpExists {
		return present && v != nil
	}
	if !present {
		return false
	}
	if f.Op == OpIn {
		candidates, _ := InValues(f.Value)
		for _, c := range candidates {
			if cmp, ok := compare(v, c); ok && cmp == 0 {
				return true
			}
		}
		return false
	}

	cmp, ok := compare(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return cmp == 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	}
	return false
}

// InValues flattens an OpIn filter value into a []any.
func InValues(v any) ([]any, bool) {
	if vs, ok := v.([]any); ok {
		return vs, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// compare orders a and b. ok is false when the values are not comparable.
func compare(a, b any) (int, bool) {
	if af, ok := ToFloat(a); ok {
		bf, ok := ToFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// ToFloat converts any numeric document value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// cloneData deep-copies document data so stored values cannot be mutated
// through caller-held maps or slices.
func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneData(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return slices.Clone(t)
	case map[string]string:
		return maps.Clone(t)
	}
	return v
}
