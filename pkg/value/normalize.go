package value

import (
	"reflect"
	"sort"
)

// Normalize converts decoder output into containers: any map with string
// keys becomes an *Object (keys sorted, since Go maps carry no order) and any
// slice or array other than []byte becomes an *Array. Existing containers and
// leaves are returned as-is; containers are not descended into.
func Normalize(v any) any {
	return NormalizeKeys(v, nil)
}

// NormalizeKeys is Normalize with every object key passed through keyFn.
// A nil keyFn leaves keys unchanged.
func NormalizeKeys(v any, keyFn func(string) string) any {
	switch x := v.(type) {
	case nil, *Object, *Array, []byte:
		return v
	case map[string]any:
		return normalizeStringMap(x, keyFn)
	case []any:
		a := &Array{items: make([]any, len(x))}

		for i, item := range x {
			a.items[i] = NormalizeKeys(item, keyFn)
		}

		return a
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() { //nolint:exhaustive // only collections are converted
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}

		m := make(map[string]any, rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}

		return normalizeStringMap(m, keyFn)
	case reflect.Slice, reflect.Array:
		a := &Array{items: make([]any, rv.Len())}

		for i := range rv.Len() {
			a.items[i] = NormalizeKeys(rv.Index(i).Interface(), keyFn)
		}

		return a
	default:
		return v
	}
}

func normalizeStringMap(m map[string]any, keyFn func(string) string) *Object {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	o := NewObject()

	for _, k := range keys {
		name := k
		if keyFn != nil {
			name = keyFn(k)
		}

		o.Set(name, NormalizeKeys(m[k], keyFn))
	}

	return o
}
