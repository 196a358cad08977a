package value

import (
	"math"
	"reflect"
)

// ShallowCopy returns a new container holding the same direct children (same
// identities). Non-containers are returned unchanged.
func ShallowCopy(v any) any {
	switch c := v.(type) {
	case *Object:
		if c == nil {
			return c
		}

		cp := &Object{
			keys: make([]string, len(c.keys)),
			vals: make(map[string]any, len(c.vals)),
		}
		copy(cp.keys, c.keys)

		for k, val := range c.vals {
			cp.vals[k] = val
		}

		return cp
	case *Array:
		if c == nil {
			return c
		}

		return NewArray(c.items...)
	default:
		return v
	}
}

// Same implements SameValue identity: containers compare by pointer, floats
// treat NaN as equal to itself and distinguish +0 from -0, other comparable
// values use ==. Incomparable values (maps, slices, funcs) compare by the
// address of their underlying data.
func Same(a, b any) bool {
	switch x := a.(type) {
	case *Object:
		y, ok := b.(*Object)
		return ok && x == y
	case *Array:
		y, ok := b.(*Array)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && sameFloat(x, y)
	case float32:
		y, ok := b.(float32)
		return ok && sameFloat(float64(x), float64(y))
	}

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if ta.Comparable() {
		return a == b
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)

	switch va.Kind() { //nolint:exhaustive // comparable kinds handled above
	case reflect.Map, reflect.Func, reflect.Chan:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	default:
		return false
	}
}

func sameFloat(x, y float64) bool {
	if math.IsNaN(x) && math.IsNaN(y) {
		return true
	}

	return x == y && (x != 0 || math.Signbit(x) == math.Signbit(y))
}

// ShallowEqual reports whether a and b are Same, or are containers of the
// same kind whose direct children are pairwise Same.
func ShallowEqual(a, b any) bool {
	if Same(a, b) {
		return true
	}

	switch x := a.(type) {
	case *Object:
		y, ok := b.(*Object)
		if !ok || x == nil || y == nil || x.Len() != y.Len() {
			return false
		}

		for _, k := range x.keys {
			yv, has := y.vals[k]
			if !has || !Same(x.vals[k], yv) {
				return false
			}
		}

		return true
	case *Array:
		y, ok := b.(*Array)
		if !ok || x == nil || y == nil || x.Len() != y.Len() {
			return false
		}

		for i := range x.items {
			if !Same(x.items[i], y.items[i]) {
				return false
			}
		}

		return true
	default:
		return false
	}
}
