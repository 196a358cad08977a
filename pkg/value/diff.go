package value

import "strconv"

// Diff returns the minimal set of paths at which b differs from a. A path is
// reported instead of descending when the value changed kind, when an array
// changed length, or when an object lost keys; added object keys are reported
// individually. The empty path means the roots themselves differ.
func Diff(a, b any) []Path {
	var out []Path

	diffInto(Path{}, a, b, &out)

	return out
}

func diffInto(p Path, a, b any, out *[]Path) {
	if Same(a, b) {
		return
	}

	switch x := a.(type) {
	case *Object:
		y, ok := b.(*Object)
		if !ok || x == nil || y == nil {
			*out = append(*out, p)
			return
		}

		for _, k := range x.keys {
			if _, has := y.vals[k]; !has {
				*out = append(*out, p)
				return
			}
		}

		for _, k := range x.keys {
			diffInto(p.Child(k), x.vals[k], y.vals[k], out)
		}

		for _, k := range y.keys {
			if _, has := x.vals[k]; !has {
				*out = append(*out, p.Child(k))
			}
		}
	case *Array:
		y, ok := b.(*Array)
		if !ok || x == nil || y == nil || x.Len() != y.Len() {
			*out = append(*out, p)
			return
		}

		for i := range x.items {
			diffInto(p.Child(strconv.Itoa(i)), x.items[i], y.items[i], out)
		}
	default:
		*out = append(*out, p)
	}
}
