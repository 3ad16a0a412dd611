package testutil

import (
	"reflect"
	"unsafe"
)

// DeepEqual reports whether x and y are deeply equal, like
// reflect.DeepEqual, except that nil maps and slices compare
// equal to empty ones and two nil interfaces, pointers or
// functions compare equal.
func DeepEqual(x, y interface{}) bool {
	c := comparer{seen: make(map[visit]bool)}
	return c.equal(reflect.ValueOf(x), reflect.ValueOf(y))
}

type visit struct {
	a1, a2 unsafe.Pointer
	typ    reflect.Type
}

type comparer struct {
	seen map[visit]bool
}

// cyclic reports whether the pair x, y is already being compared
// further up, recording it otherwise.
func (c comparer) cyclic(x, y reflect.Value) bool {
	switch x.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.Struct:
	default:
		return false
	}
	if !x.CanAddr() || !y.CanAddr() {
		return false
	}
	a1 := unsafe.Pointer(x.UnsafeAddr())
	a2 := unsafe.Pointer(y.UnsafeAddr())
	if uintptr(a1) > uintptr(a2) {
		a1, a2 = a2, a1
	}
	v := visit{a1, a2, x.Type()}
	if c.seen[v] {
		return true
	}
	c.seen[v] = true
	return false
}

func (c comparer) equal(x, y reflect.Value) bool {
	if isEmpty(x) && isEmpty(y) {
		return true
	}
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}
	if x.Type() != y.Type() {
		return false
	}
	if c.cyclic(x, y) {
		return true
	}

	switch x.Kind() {
	case reflect.Bool:
		return x.Bool() == y.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return x.Int() == y.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return x.Uint() == y.Uint()
	case reflect.Float32, reflect.Float64:
		return x.Float() == y.Float()
	case reflect.Complex64, reflect.Complex128:
		return x.Complex() == y.Complex()
	case reflect.String:
		return x.String() == y.String()

	case reflect.Array, reflect.Slice:
		if x.Len() != y.Len() {
			return false
		}
		for i := 0; i < x.Len(); i++ {
			if !c.equal(x.Index(i), y.Index(i)) {
				return false
			}
		}
		return true

	case reflect.Interface:
		if x.IsNil() || y.IsNil() {
			return x.IsNil() == y.IsNil()
		}
		return c.equal(x.Elem(), y.Elem())

	case reflect.Ptr:
		if x.Pointer() == y.Pointer() {
			return true
		}
		return c.equal(x.Elem(), y.Elem())

	case reflect.Struct:
		for i := 0; i < x.NumField(); i++ {
			if !c.equal(x.Field(i), y.Field(i)) {
				return false
			}
		}
		return true

	case reflect.Map:
		if x.Pointer() == y.Pointer() {
			return true
		}
		if x.Len() != y.Len() {
			return false
		}
		for _, k := range x.MapKeys() {
			if !c.equal(x.MapIndex(k), y.MapIndex(k)) {
				return false
			}
		}
		return true

	case reflect.Func:
		return x.IsNil() && y.IsNil()
	}
	return false
}

func isEmpty(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	}
	return false
}
