// Package engine patches running machine code to redirect function calls.
//
// An Engine keeps a table of hooks. Creating a hook clones the target
// function into an executable arena, translating PC-relative instructions
// so the clone behaves like the original, and returns the clone's address
// as the trampoline. Enabling a hook overwrites the first instructions of
// the target with a jump to the detour; disabling restores the saved
// bytes. Every operation reports a Status from a closed set.
//
// The engine works at the level of raw code addresses. Type safety,
// error values and hook ownership live in the package above it.
package engine

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// Engine is a native function patching engine. All methods are safe for
// concurrent use. The zero value is ready for Initialize.
type Engine struct {
	mu          sync.Mutex
	initialized bool
	hooks       map[uintptr]*hookRecord
	queued      map[uintptr]bool
	arena       arena
}

// hookRecord tracks one patched target.
type hookRecord struct {
	target     uintptr
	detour     uintptr
	enabled    bool
	code       []byte // live target instructions
	prologue   []byte // saved bytes overwritten by the jump
	trampoline []byte // relocated clone, arena memory
}

var defaultEngine Engine

// Default returns the process-wide engine instance.
func Default() *Engine {
	return &defaultEngine
}

// Initialize prepares the engine. Every other operation fails with
// StatusNotInitialized until this runs.
func (e *Engine) Initialize() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return StatusAlreadyInitialized
	}
	e.hooks = make(map[uintptr]*hookRecord)
	e.queued = make(map[uintptr]bool)
	e.initialized = true

	Logger().Debug("engine initialized")
	return StatusOK
}

// Uninitialize disables every enabled hook, frees every trampoline and
// returns the engine to its pre-Initialize state. Trampoline addresses
// handed out by CreateHook are invalid afterward.
func (e *Engine) Uninitialize() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return StatusNotInitialized
	}

	for _, h := range e.hooks {
		if h.enabled {
			if st := e.unpatch(h); st != StatusOK {
				Logger().Warn("uninitialize: failed to restore target",
					zap.Uintptr("target", h.target),
					zap.Stringer("status", st))
			}
		}
		e.freeTrampoline(h)
	}
	e.hooks = nil
	e.queued = nil
	e.initialized = false

	Logger().Debug("engine uninitialized")
	return StatusOK
}

// CreateHook builds a trampoline for target and records a disabled hook
// that will redirect target to detour once enabled. It returns the
// trampoline's entry address.
func (e *Engine) CreateHook(target, detour uintptr) (uintptr, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return 0, StatusNotInitialized
	}
	if target == 0 || detour == 0 {
		return 0, StatusNotExecutable
	}
	if _, ok := e.hooks[target]; ok {
		return 0, StatusAlreadyCreated
	}

	code, ok := codeRegion(target)
	if !ok {
		return 0, StatusNotExecutable
	}
	if len(code) < jumpSize {
		return 0, StatusUnsupportedFunction
	}

	tr, st := e.buildTrampoline(code)
	if st != StatusOK {
		return 0, st
	}

	h := &hookRecord{
		target:     target,
		detour:     detour,
		code:       code,
		prologue:   append([]byte(nil), code[:jumpSize]...),
		trampoline: tr,
	}
	e.hooks[target] = h

	entry := uintptr(unsafe.Pointer(unsafe.SliceData(tr)))
	Logger().Debug("hook created",
		zap.Uintptr("target", target),
		zap.Uintptr("detour", detour),
		zap.Uintptr("trampoline", entry),
		zap.Int("size", len(code)))
	return entry, StatusOK
}

// buildTrampoline clones code into the arena, translating PC-relative
// instructions so the clone keeps the original behavior.
func (e *Engine) buildTrampoline(code []byte) ([]byte, Status) {
	if err := e.arena.beginMutate(); err != nil {
		Logger().Warn("failed to unprotect arena", zap.Error(err))
		return nil, StatusMemoryProtect
	}
	defer e.arena.endMutate()

	buf, err := e.arena.allocate(len(code) + relocationHeadroom)
	if err != nil {
		Logger().Warn("trampoline allocation failed", zap.Error(err))
		return nil, StatusMemoryAlloc
	}

	clone, err := relocateFunc(code, buf)
	if err != nil {
		Logger().Warn("relocation failed", zap.Error(err))
		e.arena.free(buf)
		return nil, StatusUnsupportedFunction
	}
	cacheflush(clone)

	return clone, StatusOK
}

// RemoveHook restores the target if the hook is enabled, frees its
// trampoline and forgets it.
func (e *Engine) RemoveHook(target uintptr) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return StatusNotInitialized
	}

	h, ok := e.hooks[target]
	if !ok {
		return StatusNotCreated
	}
	if h.enabled {
		if st := e.unpatch(h); st != StatusOK {
			return st
		}
	}
	e.freeTrampoline(h)
	delete(e.hooks, target)
	delete(e.queued, target)

	Logger().Debug("hook removed", zap.Uintptr("target", target))
	return StatusOK
}

// EnableHook redirects calls to target into its detour. Passing AllHooks
// enables every created hook, skipping those already enabled.
func (e *Engine) EnableHook(target uintptr) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return StatusNotInitialized
	}

	if target == AllHooks {
		for _, h := range e.hooks {
			if h.enabled {
				continue
			}
			if st := e.patch(h); st != StatusOK {
				return st
			}
		}
		return StatusOK
	}

	h, ok := e.hooks[target]
	if !ok {
		return StatusNotCreated
	}
	if h.enabled {
		return StatusAlreadyEnabled
	}
	return e.patch(h)
}

// DisableHook restores the target's original entry. Passing AllHooks
// disables every created hook, skipping those already disabled.
func (e *Engine) DisableHook(target uintptr) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return StatusNotInitialized
	}

	if target == AllHooks {
		for _, h := range e.hooks {
			if !h.enabled {
				continue
			}
			if st := e.unpatch(h); st != StatusOK {
				return st
			}
		}
		return StatusOK
	}

	h, ok := e.hooks[target]
	if !ok {
		return StatusNotCreated
	}
	if !h.enabled {
		return StatusDisabled
	}
	return e.unpatch(h)
}

// QueueEnableHook records the intent to enable target on the next
// ApplyQueued.
func (e *Engine) QueueEnableHook(target uintptr) Status {
	return e.queue(target, true)
}

// QueueDisableHook records the intent to disable target on the next
// ApplyQueued.
func (e *Engine) QueueDisableHook(target uintptr) Status {
	return e.queue(target, false)
}

func (e *Engine) queue(target uintptr, enable bool) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return StatusNotInitialized
	}

	if target == AllHooks {
		// The marker expands over the current table, so a later queued
		// entry for a single hook still wins.
		for t := range e.hooks {
			e.queued[t] = enable
		}
		return StatusOK
	}

	if _, ok := e.hooks[target]; !ok {
		return StatusNotCreated
	}
	e.queued[target] = enable
	return StatusOK
}

// ApplyQueued commits every queued transition in one pass. Hooks already
// in their queued state are skipped. The queue is cleared on success and
// kept on failure.
func (e *Engine) ApplyQueued() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return StatusNotInitialized
	}

	for target, enable := range e.queued {
		h, ok := e.hooks[target]
		if !ok || h.enabled == enable {
			continue
		}

		var st Status
		if enable {
			st = e.patch(h)
		} else {
			st = e.unpatch(h)
		}
		if st != StatusOK {
			return st
		}
	}
	e.queued = make(map[uintptr]bool)

	Logger().Debug("queued hook transitions applied")
	return StatusOK
}

// patch overwrites the start of the target with a jump to the detour.
func (e *Engine) patch(h *hookRecord) Status {
	prologue := h.code[:jumpSize:jumpSize]

	if err := mprotect(prologue, mprotectRWX); err != nil {
		Logger().Warn("failed to unprotect target",
			zap.Uintptr("target", h.target), zap.Error(err))
		return StatusMemoryProtect
	}
	defer mprotect(prologue, mprotectRX)

	if err := insertJump(prologue, h.detour); err != nil {
		Logger().Warn("failed to insert jump",
			zap.Uintptr("target", h.target), zap.Error(err))
		return StatusUnsupportedFunction
	}
	cacheflush(prologue)

	h.enabled = true
	Logger().Debug("hook enabled", zap.Uintptr("target", h.target))
	return StatusOK
}

// unpatch restores the saved prologue bytes.
func (e *Engine) unpatch(h *hookRecord) Status {
	prologue := h.code[:jumpSize:jumpSize]

	if err := mprotect(prologue, mprotectRWX); err != nil {
		Logger().Warn("failed to unprotect target",
			zap.Uintptr("target", h.target), zap.Error(err))
		return StatusMemoryProtect
	}
	defer mprotect(prologue, mprotectRX)

	copy(prologue, h.prologue)
	cacheflush(prologue)

	h.enabled = false
	Logger().Debug("hook disabled", zap.Uintptr("target", h.target))
	return StatusOK
}

func (e *Engine) freeTrampoline(h *hookRecord) {
	if h.trampoline == nil {
		return
	}
	e.arena.beginMutate()
	defer e.arena.endMutate()

	e.arena.free(h.trampoline)
	h.trampoline = nil
}
