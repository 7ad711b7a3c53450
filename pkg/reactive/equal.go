package reactive

import (
	"math"
	"reflect"
)

// identical reports whether a and b are the same value: == for comparable
// values, reference identity for maps, slices and pointers. Functions are
// never identical unless both are nil. NaN is not identical to itself.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return va.IsNil() && vb.IsNil()
	}

	if va.Comparable() {
		return va.Equal(vb)
	}
	return false
}

// hasChanged reports whether replacing old with value is a change.
// Unlike identical, two NaNs are treated as unchanged.
func hasChanged(value, old any) bool {
	return !identical(value, old) && !(isNaN(value) && isNaN(old))
}

func isNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	}
	return false
}

// isContainer reports whether v is a reactive-capable container.
func isContainer(v any) bool {
	switch t := v.(type) {
	case *Object:
		return t != nil
	case *Reactive:
		return t != nil
	}
	return false
}

// ToRaw returns the container behind a Strategy B façade, or v unchanged.
func ToRaw(v any) any {
	if r, ok := v.(*Reactive); ok && r != nil {
		return r.target
	}
	return v
}
