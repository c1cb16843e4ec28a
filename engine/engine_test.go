package engine

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine returns an initialized engine that is torn down with the
// test. Tests use private instances instead of Default so they cannot
// interfere with each other through shared hook tables.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	e := &Engine{}
	require.Equal(t, StatusOK, e.Initialize())
	t.Cleanup(func() { e.Uninitialize() })
	return e
}

func funcAddr(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// bindFunc turns a raw entry address into a callable func value.
func bindFunc[T any](addr uintptr) T {
	ref := &addr
	return *(*T)(unsafe.Pointer(&ref))
}

//go:noinline
func engineAdd(x, y int) int {
	return x + y
}

func engineMul(x, y int) int {
	return x * y
}

func TestInitialize(t *testing.T) {
	assert := assert.New(t)

	e := &Engine{}
	assert.Equal(StatusOK, e.Initialize())
	assert.Equal(StatusAlreadyInitialized, e.Initialize())
	assert.Equal(StatusOK, e.Uninitialize())
	assert.Equal(StatusNotInitialized, e.Uninitialize())

	// The engine can come back up after a full teardown.
	assert.Equal(StatusOK, e.Initialize())
	assert.Equal(StatusOK, e.Uninitialize())
}

func TestCreateHook_NotInitialized(t *testing.T) {
	e := &Engine{}

	_, st := e.CreateHook(funcAddr(engineAdd), funcAddr(engineMul))
	assert.Equal(t, StatusNotInitialized, st)
	assert.Equal(t, StatusNotInitialized, e.EnableHook(funcAddr(engineAdd)))
	assert.Equal(t, StatusNotInitialized, e.DisableHook(funcAddr(engineAdd)))
	assert.Equal(t, StatusNotInitialized, e.RemoveHook(funcAddr(engineAdd)))
	assert.Equal(t, StatusNotInitialized, e.QueueEnableHook(funcAddr(engineAdd)))
	assert.Equal(t, StatusNotInitialized, e.QueueDisableHook(funcAddr(engineAdd)))
	assert.Equal(t, StatusNotInitialized, e.ApplyQueued())
}

func TestCreateHook_BadAddresses(t *testing.T) {
	e := newTestEngine(t)

	_, st := e.CreateHook(0, funcAddr(engineMul))
	assert.Equal(t, StatusNotExecutable, st)

	_, st = e.CreateHook(funcAddr(engineAdd), 0)
	assert.Equal(t, StatusNotExecutable, st)

	// A heap address is not the entry of any function.
	var data [16]byte
	_, st = e.CreateHook(uintptr(unsafe.Pointer(&data[0])), funcAddr(engineMul))
	assert.Equal(t, StatusNotExecutable, st)
}

func TestCreateHook_Twice(t *testing.T) {
	e := newTestEngine(t)

	_, st := e.CreateHook(funcAddr(engineAdd), funcAddr(engineMul))
	require.Equal(t, StatusOK, st)

	_, st = e.CreateHook(funcAddr(engineAdd), funcAddr(engineMul))
	assert.Equal(t, StatusAlreadyCreated, st)
}

//go:noinline
func lifecycleTarget(x, y int) int {
	return x + y
}

func lifecycleDetour(x, y int) int {
	return x * y
}

func TestHookLifecycle(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t)

	target := funcAddr(lifecycleTarget)
	tr, st := e.CreateHook(target, funcAddr(lifecycleDetour))
	require.Equal(t, StatusOK, st)
	require.NotZero(t, tr)

	// Hooks are created disabled.
	assert.Equal(7, lifecycleTarget(2, 5))

	assert.Equal(StatusOK, e.EnableHook(target))
	assert.Equal(10, lifecycleTarget(2, 5))
	assert.Equal(StatusAlreadyEnabled, e.EnableHook(target))

	// The trampoline keeps the original behavior while the hook is live.
	original := bindFunc[func(int, int) int](tr)
	assert.Equal(7, original(2, 5))

	assert.Equal(StatusOK, e.DisableHook(target))
	assert.Equal(7, lifecycleTarget(2, 5))
	assert.Equal(StatusDisabled, e.DisableHook(target))

	assert.Equal(StatusOK, e.RemoveHook(target))
	assert.Equal(7, lifecycleTarget(2, 5))
	assert.Equal(StatusNotCreated, e.RemoveHook(target))
	assert.Equal(StatusNotCreated, e.EnableHook(target))
}

//go:noinline
func removeWhileEnabledTarget(s string) string {
	return "original " + s
}

func removeWhileEnabledDetour(s string) string {
	return "detour " + s
}

func TestRemoveHook_WhileEnabled(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t)

	target := funcAddr(removeWhileEnabledTarget)
	_, st := e.CreateHook(target, funcAddr(removeWhileEnabledDetour))
	require.Equal(t, StatusOK, st)

	require.Equal(t, StatusOK, e.EnableHook(target))
	assert.Equal("detour x", removeWhileEnabledTarget("x"))

	// Remove restores the target without an explicit disable.
	assert.Equal(StatusOK, e.RemoveHook(target))
	assert.Equal("original x", removeWhileEnabledTarget("x"))
}

//go:noinline
func uninitTarget(x int) int {
	return x + 1
}

func uninitDetour(x int) int {
	return x - 1
}

func TestUninitialize_RestoresTargets(t *testing.T) {
	assert := assert.New(t)

	e := &Engine{}
	require.Equal(t, StatusOK, e.Initialize())

	target := funcAddr(uninitTarget)
	_, st := e.CreateHook(target, funcAddr(uninitDetour))
	require.Equal(t, StatusOK, st)
	require.Equal(t, StatusOK, e.EnableHook(target))
	require.Equal(t, 4, uninitTarget(5))

	assert.Equal(StatusOK, e.Uninitialize())
	assert.Equal(6, uninitTarget(5))
}

//go:noinline
func queueTargetA(x int) int { return x + 1 }

//go:noinline
func queueTargetB(x int) int { return x + 2 }

//go:noinline
func queueTargetC(x int) int { return x + 3 }

func queueDetourA(x int) int { return x * 10 }
func queueDetourB(x int) int { return x * 20 }
func queueDetourC(x int) int { return x * 30 }

func TestQueue_LastWriteWins(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t)

	a, b, c := funcAddr(queueTargetA), funcAddr(queueTargetB), funcAddr(queueTargetC)
	for _, hook := range []struct{ target, detour uintptr }{
		{a, funcAddr(queueDetourA)},
		{b, funcAddr(queueDetourB)},
		{c, funcAddr(queueDetourC)},
	} {
		_, st := e.CreateHook(hook.target, hook.detour)
		require.Equal(t, StatusOK, st)
	}
	require.Equal(t, StatusOK, e.EnableHook(b))

	// Queued transitions take effect only at ApplyQueued, with the last
	// entry per hook winning.
	assert.Equal(StatusOK, e.QueueEnableHook(a))
	assert.Equal(StatusOK, e.QueueDisableHook(b))
	assert.Equal(StatusOK, e.QueueEnableHook(c))
	assert.Equal(StatusOK, e.QueueDisableHook(c))

	assert.Equal(2, queueTargetA(1))
	assert.Equal(20, queueTargetB(1))

	assert.Equal(StatusOK, e.ApplyQueued())

	assert.Equal(10, queueTargetA(1))
	assert.Equal(3, queueTargetB(1))
	assert.Equal(4, queueTargetC(1))
}

func TestQueue_UnknownTarget(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, StatusNotCreated, e.QueueEnableHook(funcAddr(engineAdd)))
	assert.Equal(t, StatusNotCreated, e.QueueDisableHook(funcAddr(engineAdd)))
}

//go:noinline
func allHooksTargetA(x int) int { return x + 100 }

//go:noinline
func allHooksTargetB(x int) int { return x + 200 }

func allHooksDetourA(x int) int { return -x }
func allHooksDetourB(x int) int { return -2 * x }

func TestAllHooks(t *testing.T) {
	assert := assert.New(t)
	e := newTestEngine(t)

	a, b := funcAddr(allHooksTargetA), funcAddr(allHooksTargetB)
	_, st := e.CreateHook(a, funcAddr(allHooksDetourA))
	require.Equal(t, StatusOK, st)
	_, st = e.CreateHook(b, funcAddr(allHooksDetourB))
	require.Equal(t, StatusOK, st)

	assert.Equal(StatusOK, e.EnableHook(AllHooks))
	assert.Equal(-1, allHooksTargetA(1))
	assert.Equal(-2, allHooksTargetB(1))

	// Enabling all again is not an error even though every hook is
	// already enabled.
	assert.Equal(StatusOK, e.EnableHook(AllHooks))

	assert.Equal(StatusOK, e.DisableHook(AllHooks))
	assert.Equal(101, allHooksTargetA(1))
	assert.Equal(201, allHooksTargetB(1))
	assert.Equal(StatusOK, e.DisableHook(AllHooks))

	assert.Equal(StatusOK, e.QueueEnableHook(AllHooks))
	assert.Equal(StatusOK, e.ApplyQueued())
	assert.Equal(-1, allHooksTargetA(1))
	assert.Equal(-2, allHooksTargetB(1))

	assert.Equal(StatusOK, e.QueueDisableHook(AllHooks))
	assert.Equal(StatusOK, e.ApplyQueued())
	assert.Equal(101, allHooksTargetA(1))
	assert.Equal(201, allHooksTargetB(1))
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestStatusString(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("ok", StatusOK.String())
	assert.Equal("already-initialized", StatusAlreadyInitialized.String())
	assert.Equal("disabled", StatusDisabled.String())
	assert.Equal("function-not-found", StatusFunctionNotFound.String())
	assert.Equal("Status(77)", Status(77).String())
}
