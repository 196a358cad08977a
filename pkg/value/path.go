package value

import (
	"slices"
	"strings"
)

// Path is an ordered sequence of property keys from a root to a value.
type Path []string

// ParsePath splits a dot-separated path. The empty string is the root path.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}

	return Path(strings.Split(s, "."))
}

// String joins the keys with dots.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Clone returns an independent copy.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)

	return out
}

// Child returns a new path extended by key. The receiver is never aliased,
// so sibling children built from the same parent do not share storage.
func (p Path) Child(key string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = key

	return out
}

// Split returns the parent path and the last key. The root path has no last
// key and reports ok=false.
func (p Path) Split() (parent Path, last string, ok bool) {
	if len(p) == 0 {
		return nil, "", false
	}

	return p[:len(p)-1], p[len(p)-1], true
}

// Equal reports element-wise equality.
func (p Path) Equal(o Path) bool {
	return slices.Equal(p, o)
}

// HasPrefix reports whether prefix is a (not necessarily strict) prefix of p.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && slices.Equal(p[:len(prefix)], prefix)
}

// Extends reports whether p is strictly longer than prefix and starts with it.
func (p Path) Extends(prefix Path) bool {
	return len(p) > len(prefix) && p.HasPrefix(prefix)
}

// Overlaps reports whether either path is a prefix of the other, meaning a
// change at one can affect a read at the other.
func (p Path) Overlaps(o Path) bool {
	return p.HasPrefix(o) || o.HasPrefix(p)
}

// Overlapping returns the entries of paths that overlap any of changed, in
// the order of paths.
func Overlapping(paths, changed []Path) []Path {
	var out []Path

	for _, p := range paths {
		for _, c := range changed {
			if p.Overlaps(c) {
				out = append(out, p)
				break
			}
		}
	}

	return out
}
