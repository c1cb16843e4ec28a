// Package cell provides write-once storage for process-lifetime values
// shared across goroutines. Each cell type trades contention behavior
// differently: Once blocks competitors and poisons on failure, Atomic
// publishes by compare-and-swap with wait-free reads, and RW guards a
// replaceable value with a read/write lock.
package cell

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrDead is returned by a Once cell after a failed initialization. The
// cell never retries: the first failure marks it dead for the remainder of
// the process.
var ErrDead = errors.New("cell: dead after failed initialization")

// ErrEmpty is returned by Get before any initialization has completed.
var ErrEmpty = errors.New("cell: not initialized")

// Once is a blocking one-shot cell. The first Init caller runs the
// initializer and every concurrent caller blocks until it finishes.
//
// The zero value is ready to use.
type Once[T any] struct {
	once sync.Once
	done atomic.Bool
	val  T
	err  error
}

// Init runs f unless the cell has already been initialized. The caller
// whose f runs receives f's error directly. After a successful Init,
// repeated calls return nil; after a failed one, every caller receives
// ErrDead.
func (c *Once[T]) Init(f func() (T, error)) error {
	ran := false
	c.once.Do(func() {
		c.val, c.err = f()
		c.done.Store(true)
		ran = true
	})
	if ran {
		return c.err
	}
	if c.err != nil {
		return ErrDead
	}
	return nil
}

// Get returns the initialized value. It returns ErrEmpty if Init has never
// completed and ErrDead if initialization failed.
func (c *Once[T]) Get() (T, error) {
	var zero T
	if !c.done.Load() {
		return zero, ErrEmpty
	}
	if c.err != nil {
		return zero, ErrDead
	}
	return c.val, nil
}
