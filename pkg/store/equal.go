package store

import "reflect"

// Equal reports whether a and b are equal. Basic kinds compare with ==;
// everything else uses reflect.DeepEqual.
func Equal[S any](a, b S) bool {
	switch av := any(a).(type) {
	case int:
		return same(av, any(b))
	case int64:
		return same(av, any(b))
	case int32:
		return same(av, any(b))
	case uint:
		return same(av, any(b))
	case uint64:
		return same(av, any(b))
	case uint32:
		return same(av, any(b))
	case float64:
		return same(av, any(b))
	case float32:
		return same(av, any(b))
	case string:
		return same(av, any(b))
	case bool:
		return same(av, any(b))
	default:
		return reflect.DeepEqual(a, b)
	}
}

func same[T comparable](a T, b any) bool {
	bv, ok := b.(T)
	return ok && a == bv
}
