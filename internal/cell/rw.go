package cell

import "sync"

// RW holds a value read under a shared lock and replaced under an exclusive
// lock. It suits values swapped rarely but read on hot paths, where a
// reader must never observe a half-written value.
type RW[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewRW returns a cell holding v.
func NewRW[T any](v T) *RW[T] {
	return &RW[T]{v: v}
}

// Load returns the current value.
func (c *RW[T]) Load() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Store replaces the current value.
func (c *RW[T]) Store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = v
}
