package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:noinline
func staticAdd(x, y int) int {
	return x + y
}

var staticAddHook = NewStaticHook("staticAdd", staticAdd, staticAddThunk)

func staticAddThunk(x, y int) int {
	defer ContainPanic("staticAdd")
	return staticAddHook.Detour()(x, y)
}

func TestStaticHook(t *testing.T) {
	assert := assert.New(t)

	// Everything panics until the hook is initialized.
	assert.PanicsWithValue("hook staticAdd: used before initialization", func() {
		staticAddHook.Detour()
	})
	assert.PanicsWithValue("hook staticAdd: used before initialization", func() {
		staticAddHook.Enable()
	})

	require.NoError(t, staticAddHook.Initialize(func(x, y int) int {
		return x * y
	}))

	assert.PanicsWithValue("hook staticAdd: initialized twice", func() {
		staticAddHook.Initialize(func(x, y int) int { return 0 })
	})

	assert.Equal("staticAdd", staticAddHook.Name())
	assert.Equal(funcAddr(staticAdd), staticAddHook.Target().Addr())

	// Created disabled, like any other hook.
	assert.Equal(7, staticAdd(2, 5))

	require.NoError(t, staticAddHook.Enable())
	assert.Equal(10, staticAdd(2, 5))
	assert.Equal(7, staticAddHook.Trampoline()(2, 5))

	require.NoError(t, staticAddHook.Disable())
	assert.Equal(7, staticAdd(2, 5))
}

//go:noinline
func staticConcat(a, b string) string {
	return a + b
}

var staticConcatHook = NewStaticHook("staticConcat", staticConcat, staticConcatThunk)

func staticConcatThunk(a, b string) string {
	defer ContainPanic("staticConcat")
	return staticConcatHook.Detour()(a, b)
}

// The thunk reads the replacement through the hook variable, so unlike a
// plain Hook detour it may capture state.
func TestStaticHook_CapturingDetour(t *testing.T) {
	assert := assert.New(t)

	sep := "-"
	require.NoError(t, staticConcatHook.Initialize(func(a, b string) string {
		return a + sep + b
	}))
	require.NoError(t, staticConcatHook.Enable())
	t.Cleanup(func() { staticConcatHook.Disable() })

	assert.Equal("x-y", staticConcat("x", "y"))

	sep = "+"
	assert.Equal("x+y", staticConcat("x", "y"))

	// The trampoline still reaches the unhooked behavior.
	assert.Equal("xy", staticConcatHook.Trampoline()("x", "y"))
}

func staticSymbolThunk() {
	defer ContainPanic("staticSymbol")
	staticSymbolHook.Detour()()
}

var staticSymbolHook = NewStaticHookSymbol[func()]("staticSymbol", "bad\x00module", "fn", staticSymbolThunk)

func TestStaticHookSymbol_FailedInitializeRetries(t *testing.T) {
	assert := assert.New(t)

	// A failed installation publishes nothing...
	assert.ErrorIs(staticSymbolHook.Initialize(func() {}), ErrInvalidModuleName)
	assert.PanicsWithValue("hook staticSymbol: used before initialization", func() {
		staticSymbolHook.Detour()
	})

	// ...so trying again is an error, not a panic.
	assert.ErrorIs(staticSymbolHook.Initialize(func() {}), ErrInvalidModuleName)
}

//go:noinline
func staticSub(x, y int) int {
	return x - y
}

var staticSubHook = NewStaticHookWithDefault("staticSub", staticSub, staticSubThunk, func(x, y int) int {
	return y - x
})

func staticSubThunk(x, y int) int {
	defer ContainPanic("staticSub")
	return staticSubHook.Detour()(x, y)
}

func TestStaticHookWithDefault(t *testing.T) {
	assert := assert.New(t)

	require.NoError(t, staticSubHook.Initialize())
	require.NoError(t, staticSubHook.Enable())
	t.Cleanup(func() { staticSubHook.Disable() })

	assert.Equal(-3, staticSub(5, 2))
	assert.Equal(3, staticSubHook.Trampoline()(5, 2))

	assert.PanicsWithValue("hook staticSub: initialized twice", func() {
		staticSubHook.Initialize()
	})
}
