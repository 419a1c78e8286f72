// FILE: lixenwraith/classconfig/merge.go
package classconfig

import (
	"encoding/json"
	"fmt"
	"reflect"

	"fortio.org/safecast"
)

// ClassConfig is the configuration mapping of one class. Values are scalars,
// sequences or nested map[string]any mappings.
type ClassConfig map[string]any

// Clone returns a deep copy of c
func (c ClassConfig) Clone() ClassConfig {
	if c == nil {
		return ClassConfig{}
	}
	return ClassConfig(deepCopyMap(c))
}

// MergePriority returns a fresh mapping holding low overlaid with high.
// Keys in high win. When both sides hold a mapping for a key the mappings are
// merged recursively with the same rule. Sequences and scalars in high replace
// the value in low wholesale. Neither input is modified.
func MergePriority(low, high map[string]any) map[string]any {
	out := deepCopyMap(low)
	mergeInto(out, high)
	return out
}

// mergeInto overlays high onto dst in place. dst must not share nested maps
// with any caller-visible value.
func mergeInto(dst, high map[string]any) {
	for key, hv := range high {
		hm, highIsMap := hv.(map[string]any)
		if highIsMap {
			if dm, ok := dst[key].(map[string]any); ok {
				mergeInto(dm, hm)
				continue
			}
		}
		dst[key] = deepCopyValue(hv)
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch tv := v.(type) {
	case nil:
		return nil
	case ClassConfig:
		return deepCopyMap(tv)
	case map[string]any:
		return deepCopyMap(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = deepCopyValue(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && !rv.IsNil() {
		cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(cp, rv)
		return cp.Interface()
	}
	return v
}

// normalizeMap converts decoder output into the canonical value shapes:
// nested mappings become map[string]any, sequences of mappings become []any,
// integers become int64 and json.Number becomes int64 or float64.
func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch tv := v.(type) {
	case map[string]any:
		return normalizeMap(tv)
	case ClassConfig:
		return normalizeMap(tv)
	case map[any]any:
		m := make(map[string]any, len(tv))
		for k, e := range tv {
			ks, ok := k.(string)
			if !ok {
				ks = fmt.Sprint(k)
			}
			m[ks] = e
		}
		return normalizeMap(m)
	case []map[string]any:
		out := make([]any, len(tv))
		for i, e := range tv {
			nm, err := normalizeMap(e)
			if err != nil {
				return nil, err
			}
			out[i] = nm
		}
		return out, nil
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			ne, err := normalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case int:
		return int64(tv), nil
	case int8:
		return int64(tv), nil
	case int16:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case uint8:
		return int64(tv), nil
	case uint16:
		return int64(tv), nil
	case uint32:
		return int64(tv), nil
	case uint:
		i, err := safecast.Conv[int64](tv)
		if err != nil {
			return nil, fmt.Errorf("integer %d: %w", tv, err)
		}
		return i, nil
	case uint64:
		i, err := safecast.Conv[int64](tv)
		if err != nil {
			return nil, fmt.Errorf("integer %d: %w", tv, err)
		}
		return i, nil
	case float32:
		return float64(tv), nil
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return i, nil
		}
		f, err := tv.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", tv.String(), err)
		}
		return f, nil
	}
	return normalizeReflect(v)
}

// normalizeReflect turns typed sequences and mappings ([]string,
// map[string]int, arrays) into []any and map[string]any. Byte slices and
// values with a text form stay as they are.
func normalizeReflect(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().Implements(textMarshalerType) {
		return v, nil
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			e, err := normalizeValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case reflect.Map:
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		return normalizeMap(m)
	}
	return v, nil
}

// storable reports whether every value of m survives a persistent store
// round trip unchanged: mappings, sequences, strings, booleans, int64 and
// float64.
func storable(m map[string]any) bool {
	for _, v := range m {
		if !storableValue(v) {
			return false
		}
	}
	return true
}

func storableValue(v any) bool {
	switch tv := v.(type) {
	case nil, string, bool, int64, float64:
		return true
	case map[string]any:
		return storable(tv)
	case []any:
		for _, e := range tv {
			if !storableValue(e) {
				return false
			}
		}
		return true
	}
	return false
}
