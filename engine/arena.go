package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pboyd/malloc"
)

// arena owns the executable memory that relocated trampolines live in.
// Outside of an allocate or free window the pages are mapped RX; callers
// bracket mutation with beginMutate and endMutate.
type arena struct {
	*malloc.Arena
	protect  func(int) error
	mu       sync.Mutex
	initOnce sync.Once
	mutable  bool
}

func (a *arena) init(startSize int) error {
	var err error
	a.initOnce.Do(func() {
		be := malloc.MmapBackend(mprotectRWX, arenaMapFlags)
		if protBE, ok := be.(malloc.ProtectedArenaBackend); ok {
			a.protect = protBE.Protect
		} else {
			a.protect = func(int) error {
				return nil
			}
		}

		a.Arena = malloc.NewArena(uint64(startSize), malloc.Backend(be))
		if a.Arena == nil {
			err = errors.New("unable to initialize arena")
			return
		}
		a.mutable = true
	})
	return err
}

func (a *arena) beginMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Note that beginMutate can be called before the initial allocation.

	if a.protect == nil || a.mutable {
		return nil
	}

	err := a.protect(mprotectRWX)
	if err == nil {
		a.mutable = true
	}
	return err
}

func (a *arena) endMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.mutable {
		return nil
	}

	err := a.protect(mprotectRX)
	if err == nil {
		a.mutable = false
	}
	return err
}

func (a *arena) allocate(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.init(size)
	if err != nil {
		return nil, fmt.Errorf("error initializing arena: %w", err)
	}

	if !a.mutable {
		panic("allocate called in immutable state")
	}

	return malloc.MallocSlice[byte](a.Arena, size)
}

func (a *arena) free(buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.mutable {
		panic("free called in immutable state")
	}

	malloc.FreeSlice(a.Arena, buf)
}
