package detour

import (
	"fmt"

	"github.com/pboyd/detour/internal/cell"
)

// StaticHook binds a hook to a process-lifetime variable. The declaration
// supplies the target and a thunk; Initialize supplies the replacement
// logic exactly once and installs the hook. Every other method panics
// until Initialize has succeeded.
//
// The thunk must be a top-level function of type T that forwards to
// Detour:
//
//	var timeNow = detour.NewStaticHook("timeNow", time.Now, timeNowThunk)
//
//	func timeNowThunk() time.Time {
//		defer detour.ContainPanic("timeNow")
//		return timeNow.Detour()()
//	}
//
// The engine redirects the target to the thunk, and the thunk reads the
// replacement through a wait-free cell. The replacement may therefore be
// a capturing closure even though patched code cannot carry a closure
// context itself.
type StaticHook[T any] struct {
	name   string
	target func() (FnPointer, error)
	thunk  T
	inner  cell.Atomic[staticInner[T]]
}

type staticInner[T any] struct {
	hook   *Hook[T]
	detour T
}

// NewStaticHook declares a static hook on a target function value. The
// declaration itself touches nothing; installation happens in Initialize.
func NewStaticHook[T any](name string, target T, thunk T) *StaticHook[T] {
	return &StaticHook[T]{
		name: name,
		target: func() (FnPointer, error) {
			return Pointer(target)
		},
		thunk: thunk,
	}
}

// NewStaticHookSymbol declares a static hook whose target is resolved
// from a module and symbol pair when Initialize runs.
func NewStaticHookSymbol[T any](name, module, symbol string, thunk T) *StaticHook[T] {
	return &StaticHook[T]{
		name: name,
		target: func() (FnPointer, error) {
			return resolve(module, symbol)
		},
		thunk: thunk,
	}
}

// Initialize installs the hook with detour as the replacement logic. It
// must be called at most once across the process: a second call panics. A
// failed installation publishes nothing, so it may be retried.
func (s *StaticHook[T]) Initialize(detour T) error {
	if s.inner.Load() != nil {
		panic(fmt.Sprintf("hook %s: initialized twice", s.name))
	}

	target, err := s.target()
	if err != nil {
		return err
	}

	h, err := NewAddr[T](target, s.thunk)
	if err != nil {
		return err
	}
	h.name = s.name

	if !s.inner.TrySet(&staticInner[T]{hook: h, detour: detour}) {
		// Another goroutine won the race; its hook is the live one.
		h.Close()
		panic(fmt.Sprintf("hook %s: initialized twice", s.name))
	}
	return nil
}

func (s *StaticHook[T]) get() *staticInner[T] {
	inner := s.inner.Load()
	if inner == nil {
		panic(fmt.Sprintf("hook %s: used before initialization", s.name))
	}
	return inner
}

// Name returns the declared name.
func (s *StaticHook[T]) Name() string {
	return s.name
}

// Detour returns the replacement logic supplied to Initialize. Thunks
// call this on every invocation; the read is wait-free.
func (s *StaticHook[T]) Detour() T {
	return s.get().detour
}

// Trampoline returns a callable with the target's original behavior.
func (s *StaticHook[T]) Trampoline() T {
	return s.get().hook.Trampoline()
}

// Target returns the hooked address.
func (s *StaticHook[T]) Target() FnPointer {
	return s.get().hook.Target()
}

// Enable redirects the target to the thunk.
func (s *StaticHook[T]) Enable() error {
	return s.get().hook.Enable()
}

// Disable restores the target's entry.
func (s *StaticHook[T]) Disable() error {
	return s.get().hook.Disable()
}

// queueTarget implements Queueable.
func (s *StaticHook[T]) queueTarget() (uintptr, string) {
	return s.get().hook.queueTarget()
}

// StaticHookWithDefault is a StaticHook that carries its replacement
// logic from declaration time, so initialization needs no arguments and
// call sites choose the detour declaratively.
type StaticHookWithDefault[T any] struct {
	StaticHook[T]
	def T
}

// NewStaticHookWithDefault declares a static hook with a default detour.
func NewStaticHookWithDefault[T any](name string, target T, thunk T, detour T) *StaticHookWithDefault[T] {
	s := &StaticHookWithDefault[T]{def: detour}
	s.name = name
	s.target = func() (FnPointer, error) {
		return Pointer(target)
	}
	s.thunk = thunk
	return s
}

// Initialize installs the hook with the declared default detour. The
// once-only contract of StaticHook.Initialize applies.
func (s *StaticHookWithDefault[T]) Initialize() error {
	return s.StaticHook.Initialize(s.def)
}
