package detour

import (
	"fmt"
	"reflect"
	"unsafe"
)

// FnPointer is an opaque handle to one raw code address, the only currency
// exchanged with the engine. It carries no ownership: nothing is freed or
// validated through it. Two FnPointers compare equal exactly when their
// addresses are equal.
type FnPointer struct {
	addr uintptr
}

// Pointer returns the FnPointer for a function value. fn must be a
// non-nil func.
func Pointer(fn any) (FnPointer, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return FnPointer{}, fmt.Errorf("not a function, kind: %v", v.Kind())
	}
	if v.IsNil() {
		return FnPointer{}, fmt.Errorf("nil function")
	}
	return FnPointer{addr: v.Pointer()}, nil
}

// Addr exposes the raw code address.
func (p FnPointer) Addr() uintptr {
	return p.addr
}

// IsZero reports whether p holds no address.
func (p FnPointer) IsZero() bool {
	return p.addr == 0
}

// bind reinterprets a raw code address as a callable func value of type T.
// The address must reference code with T's calling convention; nothing
// verifies that. The code must not expect a closure context.
func bind[T any](p FnPointer) T {
	// A func value is a pointer to a funcval, whose first word is the
	// code address. Allocate that word on the heap and point at it.
	addr := p.addr
	ref := &addr
	return *(*T)(unsafe.Pointer(&ref))
}
