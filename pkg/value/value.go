// Package value models the raw trees wrapped by the tracker: insertion-ordered
// objects, growable arrays, and primitive leaves. Containers are always handled
// by pointer, so pointer identity is the freshness signal the tracker relies on
// when it decides whether a cached child wrapper still mirrors the live value.
package value

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange indicates an array write beyond the append position.
var ErrIndexOutOfRange = errors.New("index out of range")

// Object is an insertion-ordered string-keyed container.
type Object struct {
	keys []string
	vals map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{vals: make(map[string]any)}
}

// Obj builds an Object from alternating key/value arguments. It is meant for
// literals in code and tests, so a malformed argument list panics.
func Obj(kv ...any) *Object {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("value: Obj called with odd argument count %d", len(kv)))
	}

	o := NewObject()

	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("value: Obj key at position %d is %T, want string", i, kv[i]))
		}

		o.Set(key, kv[i+1])
	}

	return o
}

// Get returns the value stored under key and whether it is present.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Set stores v under key. New keys are appended to the key order; existing
// keys keep their position.
func (o *Object) Set(key string, v any) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}

	o.vals[key] = v
}

// Delete removes key and reports whether it was present.
func (o *Object) Delete(key string) bool {
	if _, ok := o.vals[key]; !ok {
		return false
	}

	delete(o.vals, key)

	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}

	return true
}

// Keys returns a copy of the keys in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)

	return out
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// Array is a growable sequence container.
type Array struct {
	items []any
}

// NewArray returns an Array holding a copy of items.
func NewArray(items ...any) *Array {
	a := &Array{items: make([]any, len(items))}
	copy(a.items, items)

	return a
}

// Arr is shorthand for NewArray, intended for literals.
func Arr(items ...any) *Array {
	return NewArray(items...)
}

// At returns the element at index i and whether i is in range.
func (a *Array) At(i int) (any, bool) {
	if i < 0 || i >= len(a.items) {
		return nil, false
	}

	return a.items[i], true
}

// SetAt replaces the element at i. Writing at exactly Len() appends.
func (a *Array) SetAt(i int, v any) error {
	switch {
	case i >= 0 && i < len(a.items):
		a.items[i] = v
	case i == len(a.items):
		a.items = append(a.items, v)
	default:
		return fmt.Errorf("value: set index %d on array of length %d: %w", i, len(a.items), ErrIndexOutOfRange)
	}

	return nil
}

// Append adds v at the end.
func (a *Array) Append(v any) {
	a.items = append(a.items, v)
}

// Resize truncates the array to n elements or pads it with nil.
func (a *Array) Resize(n int) {
	if n < 0 {
		n = 0
	}

	if n <= len(a.items) {
		clear(a.items[n:])
		a.items = a.items[:n]

		return
	}

	a.items = append(a.items, make([]any, n-len(a.items))...)
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.items)
}

// Items returns a copy of the elements.
func (a *Array) Items() []any {
	out := make([]any, len(a.items))
	copy(out, a.items)

	return out
}
