package cell

import "sync/atomic"

// Atomic is a compare-and-swap publication cell: a single TrySet wins and
// reads are wait-free afterwards. A losing or abandoned construction leaves
// no trace, so a later writer may still publish.
//
// The zero value is ready to use.
type Atomic[T any] struct {
	p atomic.Pointer[T]
}

// TrySet publishes v. It reports false, publishing nothing, if another
// value won the race. v must not be mutated after a successful TrySet.
func (c *Atomic[T]) TrySet(v *T) bool {
	return c.p.CompareAndSwap(nil, v)
}

// Load returns the published value, or nil before publication.
func (c *Atomic[T]) Load() *T {
	return c.p.Load()
}
