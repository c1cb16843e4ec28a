package detour

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/rs/xid"
)

// Hook owns one target redirection. Hooks are created disabled. Enable
// and Disable round-trip to the engine on every call, so the engine stays
// the single source of truth for hook state: two Hook values cannot
// disagree about whether a target is patched.
//
// The detour must not capture variables; the engine redirects the target's
// entry without a closure context, so a capturing detour would read
// garbage state. Use a StaticHook when the replacement logic needs state.
type Hook[T any] struct {
	name       string
	target     FnPointer
	trampoline T
	closed     atomic.Bool
}

// New installs a hook redirecting target to detour and returns it
// disabled. Both arguments must be func values of the same type, which
// the compiler guarantees unless T is an interface.
//
// If target has been inlined at a call site, that call site is not
// redirected. If possible, add a noinline directive to work around this
// problem:
//
//	//go:noinline
//	func myfunc() {
//		...
//	}
func New[T any](target, detour T) (*Hook[T], error) {
	tv := reflect.ValueOf(target)
	if tv.Kind() != reflect.Func {
		return nil, fmt.Errorf("target is not a function, kind: %v", tv.Kind())
	}
	dv := reflect.ValueOf(detour)
	if dv.Kind() != reflect.Func {
		return nil, fmt.Errorf("detour is not a function, kind: %v", dv.Kind())
	}
	if tv.Type() != dv.Type() {
		return nil, diffSignatures(tv, dv).Error()
	}

	return install[T](FnPointer{addr: tv.Pointer()}, FnPointer{addr: dv.Pointer()})
}

// NewAddr installs a hook on a raw target address. The address must be
// the entry of code with T's exact signature; nothing can check that, so
// the caller carries the guarantee the type system provides for New.
func NewAddr[T any](target FnPointer, detour T) (*Hook[T], error) {
	dv := reflect.ValueOf(detour)
	if dv.Kind() != reflect.Func {
		return nil, fmt.Errorf("detour is not a function, kind: %v", dv.Kind())
	}

	return install[T](target, FnPointer{addr: dv.Pointer()})
}

// NewSymbol installs a hook on the function named by a module and symbol
// pair. An empty module names the running executable. The same signature
// caveat as NewAddr applies.
func NewSymbol[T any](module, symbol string, detour T) (*Hook[T], error) {
	target, err := resolve(module, symbol)
	if err != nil {
		return nil, err
	}
	return NewAddr[T](target, detour)
}

func install[T any](target, det FnPointer) (*Hook[T], error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	tr, st := activeEngine.CreateHook(target.addr, det.addr)
	if err := statusError(st); err != nil {
		return nil, err
	}

	return &Hook[T]{
		name:       xid.New().String(),
		target:     target,
		trampoline: bind[T](FnPointer{addr: tr}),
	}, nil
}

// Name returns the hook's diagnostic name. Hooks built directly get a
// generated identifier; static hooks carry their declared name.
func (h *Hook[T]) Name() string {
	return h.name
}

// Target returns the hooked address.
func (h *Hook[T]) Target() FnPointer {
	return h.target
}

// Trampoline returns a callable with the target's original behavior. It
// works whether or not the hook is enabled. After Close it returns the
// zero value of T.
func (h *Hook[T]) Trampoline() T {
	if h.closed.Load() {
		var zero T
		return zero
	}
	return h.trampoline
}

// Enable redirects calls of the target into the detour.
func (h *Hook[T]) Enable() error {
	if h.closed.Load() {
		return ErrNotCreated
	}
	return statusError(activeEngine.EnableHook(h.target.addr))
}

// Disable restores the target's entry, ending redirection.
func (h *Hook[T]) Disable() error {
	if h.closed.Load() {
		return ErrNotCreated
	}
	return statusError(activeEngine.DisableHook(h.target.addr))
}

// Close removes the hook, restoring the target if it was enabled, and
// frees the trampoline. The first call reports the engine's result;
// repeat calls return nil.
func (h *Hook[T]) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	return statusError(activeEngine.RemoveHook(h.target.addr))
}

// queueTarget implements Queueable.
func (h *Hook[T]) queueTarget() (uintptr, string) {
	return h.target.addr, h.name
}
