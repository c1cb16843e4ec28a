package detour

import (
	"sync"
	"testing"
	"time"

	"github.com/pboyd/detour/engine"
	"github.com/pboyd/detour/internal/cell"
)

// mockEngine is created to simplify unit tests of the layer above the
// engine. Every operation succeeds unless a status is scripted with
// failWith, and every call is recorded in order.
type mockEngine struct {
	mu        sync.Mutex
	calls     []mockCall
	overrides map[string]engine.Status

	// trampoline and symbolAddr are handed out by CreateHook and
	// ResolveSymbol. They point at a real function so the addresses
	// survive being bound to func values.
	trampoline uintptr
	symbolAddr uintptr

	// delay stretches every operation to make interleavings visible.
	delay time.Duration
}

type mockCall struct {
	op     string
	target uintptr
}

var _ Engine = (*mockEngine)(nil)

//go:noinline
func mockTrampolineAnchor() {}

func newMockEngine() *mockEngine {
	anchor := funcAddr(mockTrampolineAnchor)
	return &mockEngine{
		overrides:  make(map[string]engine.Status),
		trampoline: anchor,
		symbolAddr: anchor,
	}
}

// swapEngine installs a fresh mock engine and initialization cell for one
// test and restores the real ones afterward.
func swapEngine(t *testing.T) *mockEngine {
	t.Helper()

	m := newMockEngine()
	oldEngine, oldCell := activeEngine, initCell
	activeEngine = m
	initCell = &cell.Once[struct{}]{}
	t.Cleanup(func() {
		activeEngine = oldEngine
		initCell = oldCell
	})
	return m
}

func (m *mockEngine) failWith(op string, st engine.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[op] = st
}

func (m *mockEngine) record(op string, target uintptr) engine.Status {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{op: op, target: target})
	if st, ok := m.overrides[op]; ok {
		return st
	}
	return engine.StatusOK
}

func (m *mockEngine) ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make([]string, len(m.calls))
	for i, c := range m.calls {
		ops[i] = c.op
	}
	return ops
}

func (m *mockEngine) recorded() []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockCall(nil), m.calls...)
}

func (m *mockEngine) Initialize() engine.Status {
	return m.record("Initialize", 0)
}

func (m *mockEngine) Uninitialize() engine.Status {
	return m.record("Uninitialize", 0)
}

func (m *mockEngine) CreateHook(target, detour uintptr) (uintptr, engine.Status) {
	st := m.record("CreateHook", target)
	if st != engine.StatusOK {
		return 0, st
	}
	return m.trampoline, engine.StatusOK
}

func (m *mockEngine) RemoveHook(target uintptr) engine.Status {
	return m.record("RemoveHook", target)
}

func (m *mockEngine) EnableHook(target uintptr) engine.Status {
	return m.record("EnableHook", target)
}

func (m *mockEngine) DisableHook(target uintptr) engine.Status {
	return m.record("DisableHook", target)
}

func (m *mockEngine) QueueEnableHook(target uintptr) engine.Status {
	return m.record("QueueEnableHook", target)
}

func (m *mockEngine) QueueDisableHook(target uintptr) engine.Status {
	return m.record("QueueDisableHook", target)
}

func (m *mockEngine) ApplyQueued() engine.Status {
	return m.record("ApplyQueued", 0)
}

func (m *mockEngine) ResolveSymbol(module, function string) (uintptr, engine.Status) {
	st := m.record("ResolveSymbol", 0)
	if st != engine.StatusOK {
		return 0, st
	}
	return m.symbolAddr, engine.StatusOK
}
