package detour

import (
	"errors"
	"strings"

	"github.com/pboyd/detour/engine"
	"github.com/pboyd/detour/internal/cell"
)

// Engine is the native patching surface this package drives. Operations
// work on raw code addresses and report a status from the engine's closed
// set; type safety, error values and hook ownership all live here, above
// the interface.
//
// engine.Default provides the bundled implementation.
type Engine interface {
	Initialize() engine.Status
	Uninitialize() engine.Status
	CreateHook(target, detour uintptr) (trampoline uintptr, st engine.Status)
	RemoveHook(target uintptr) engine.Status
	EnableHook(target uintptr) engine.Status
	DisableHook(target uintptr) engine.Status
	QueueEnableHook(target uintptr) engine.Status
	QueueDisableHook(target uintptr) engine.Status
	ApplyQueued() engine.Status
	ResolveSymbol(module, function string) (uintptr, engine.Status)
}

var _ Engine = (*engine.Engine)(nil)

var (
	activeEngine Engine = engine.Default()
	initCell            = &cell.Once[struct{}]{}
)

// Initialize prepares the engine for hook creation. The first call does
// the work; concurrent callers block until it finishes and every later
// call returns the same nil result. All hook constructors call it
// implicitly, so calling it directly is only useful to front-load the cost
// or observe the error.
//
// If the first call fails the package stays unusable and later calls
// return ErrNotInitialized.
func Initialize() error {
	err := initCell.Init(func() (struct{}, error) {
		return struct{}{}, statusError(activeEngine.Initialize())
	})
	if errors.Is(err, cell.ErrDead) {
		return ErrNotInitialized
	}
	return err
}

// Uninitialize tears the engine down: every hook is removed, every target
// restored and every trampoline freed. Trampolines held by live Hook
// values become dangling, including in other goroutines, so this is only
// safe when no hook can be in use. Nothing calls it implicitly, and the
// package cannot be initialized again afterward.
func Uninitialize() error {
	return statusError(activeEngine.Uninitialize())
}

// EnableAll enables every created hook in one call. Hooks already enabled
// are left alone.
func EnableAll() error {
	if err := Initialize(); err != nil {
		return err
	}
	return statusError(activeEngine.EnableHook(engine.AllHooks))
}

// DisableAll disables every enabled hook in one call.
func DisableAll() error {
	if err := Initialize(); err != nil {
		return err
	}
	return statusError(activeEngine.DisableHook(engine.AllHooks))
}

// resolve validates a module and function name pair and asks the engine
// for the address. An empty module names the running executable.
func resolve(module, function string) (FnPointer, error) {
	if strings.ContainsRune(module, 0) {
		return FnPointer{}, ErrInvalidModuleName
	}
	if function == "" || strings.ContainsRune(function, 0) {
		return FnPointer{}, ErrInvalidFunctionName
	}

	if err := Initialize(); err != nil {
		return FnPointer{}, err
	}

	addr, st := activeEngine.ResolveSymbol(module, function)
	if err := statusError(st); err != nil {
		return FnPointer{}, err
	}
	return FnPointer{addr: addr}, nil
}
