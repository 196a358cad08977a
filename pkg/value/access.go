package value

import (
	"errors"
	"fmt"
	"strconv"
)

// LengthKey is the own property every array exposes for its element count.
const LengthKey = "length"

// ErrNotContainer indicates an own-property write on a primitive value.
var ErrNotContainer = errors.New("not an object or array")

// ErrInvalidKey indicates a key an array cannot own (neither an index nor
// "length"), or a non-integer length.
var ErrInvalidKey = errors.New("invalid key for container")

// IsTrackable reports whether v is a container the tracker can wrap: a
// non-nil *Object or *Array.
func IsTrackable(v any) bool {
	switch x := v.(type) {
	case *Object:
		return x != nil
	case *Array:
		return x != nil
	default:
		return false
	}
}

// IsObject reports whether v is a non-nil *Object.
func IsObject(v any) bool {
	o, ok := v.(*Object)
	return ok && o != nil
}

// IsArray reports whether v is a non-nil *Array.
func IsArray(v any) bool {
	a, ok := v.(*Array)
	return ok && a != nil
}

// IsPrimitive reports whether v is nil, a bool, a string, or a number.
func IsPrimitive(v any) bool {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// Kind names the structural type of v: "object", "array", "primitive", or
// "opaque" for anything else (functions, channels, structs).
func Kind(v any) string {
	switch {
	case IsObject(v):
		return "object"
	case IsArray(v):
		return "array"
	case IsPrimitive(v):
		return "primitive"
	default:
		return "opaque"
	}
}

// IsTypeEqual reports whether a and b share the same Kind.
func IsTypeEqual(a, b any) bool {
	return Kind(a) == Kind(b)
}

// parseIndex accepts only canonical decimal indices ("0", "12"), so "01" or
// "+1" are ordinary keys an array does not own.
func parseIndex(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || strconv.Itoa(i) != key {
		return 0, false
	}

	return i, true
}

// Lookup performs an own-property read. Objects own their keys; arrays own
// their indices and "length". Everything else owns nothing.
func Lookup(container any, key string) (any, bool) {
	switch c := container.(type) {
	case *Object:
		if c == nil {
			return nil, false
		}

		return c.Get(key)
	case *Array:
		if c == nil {
			return nil, false
		}

		if key == LengthKey {
			return c.Len(), true
		}

		i, ok := parseIndex(key)
		if !ok {
			return nil, false
		}

		return c.At(i)
	default:
		return nil, false
	}
}

// CanAssign reports whether Assign(container, key, v) would succeed,
// without writing.
func CanAssign(container any, key string, v any) error {
	_, err := checkAssign(container, key, v)

	return err
}

// Assign performs an own-property write. Objects accept any key. Arrays
// accept an index up to Len() (which appends) or "length" with a
// non-negative integer value, which truncates or pads.
func Assign(container any, key string, v any) error {
	n, err := checkAssign(container, key, v)
	if err != nil {
		return err
	}

	switch c := container.(type) {
	case *Object:
		c.Set(key, v)
	case *Array:
		if key == LengthKey {
			c.Resize(n)

			return nil
		}

		return c.SetAt(n, v)
	}

	return nil
}

// checkAssign validates a write and returns the parsed index or length for
// arrays.
func checkAssign(container any, key string, v any) (int, error) {
	switch c := container.(type) {
	case *Object:
		if c != nil {
			return 0, nil
		}
	case *Array:
		if c == nil {
			break
		}

		if key == LengthKey {
			n, ok := toInt(v)
			if !ok {
				return 0, fmt.Errorf("value: array length must be an integer, got %T: %w", v, ErrInvalidKey)
			}

			if n < 0 {
				return 0, fmt.Errorf("value: array length %d is negative: %w", n, ErrInvalidKey)
			}

			return n, nil
		}

		i, ok := parseIndex(key)
		if !ok {
			return 0, fmt.Errorf("value: array key %q: %w", key, ErrInvalidKey)
		}

		if i > c.Len() {
			return 0, fmt.Errorf("value: set index %d on array of length %d: %w", i, c.Len(), ErrIndexOutOfRange)
		}

		return i, nil
	}

	return 0, fmt.Errorf("value: assign %q on %s: %w", key, Kind(container), ErrNotContainer)
}

// OwnKeys lists the enumerable own keys: object keys in insertion order,
// array indices in ascending order. "length" is not enumerable.
func OwnKeys(container any) []string {
	switch c := container.(type) {
	case *Object:
		if c == nil {
			return nil
		}

		return c.Keys()
	case *Array:
		if c == nil {
			return nil
		}

		keys := make([]string, c.Len())
		for i := range keys {
			keys[i] = strconv.Itoa(i)
		}

		return keys
	default:
		return nil
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}

		return int(n), true
	default:
		return 0, false
	}
}
