package detour

import (
	"errors"
	"fmt"

	"github.com/pboyd/detour/engine"
)

// The error set is closed: every failure of this package is one of these
// values, comparable with errors.Is. Engine statuses map to the first
// twelve; the last two come from symbol name validation.
var (
	ErrAlreadyInitialized  = errors.New("library already initialized")
	ErrNotInitialized      = errors.New("library not initialized")
	ErrAlreadyCreated      = errors.New("hook already created")
	ErrNotCreated          = errors.New("hook not created")
	ErrAlreadyEnabled      = errors.New("hook already enabled")
	ErrDisabled            = errors.New("hook not enabled")
	ErrNotExecutable       = errors.New("invalid pointer")
	ErrUnsupportedFunction = errors.New("function cannot be hooked")
	ErrMemoryAlloc         = errors.New("failed to allocate memory")
	ErrMemoryProtect       = errors.New("failed to change the memory protection")
	ErrModuleNotFound      = errors.New("module not loaded")
	ErrFunctionNotFound    = errors.New("function not found")
	ErrInvalidModuleName   = errors.New("invalid module name")
	ErrInvalidFunctionName = errors.New("invalid function name")
)

var statusErrors = map[engine.Status]error{
	engine.StatusAlreadyInitialized:  ErrAlreadyInitialized,
	engine.StatusNotInitialized:      ErrNotInitialized,
	engine.StatusAlreadyCreated:      ErrAlreadyCreated,
	engine.StatusNotCreated:          ErrNotCreated,
	engine.StatusAlreadyEnabled:      ErrAlreadyEnabled,
	engine.StatusDisabled:            ErrDisabled,
	engine.StatusNotExecutable:       ErrNotExecutable,
	engine.StatusUnsupportedFunction: ErrUnsupportedFunction,
	engine.StatusMemoryAlloc:         ErrMemoryAlloc,
	engine.StatusMemoryProtect:       ErrMemoryProtect,
	engine.StatusModuleNotFound:      ErrModuleNotFound,
	engine.StatusFunctionNotFound:    ErrFunctionNotFound,
}

// statusError translates an engine status into the matching exported
// error. A status outside the closed set is a bug in the engine, not a
// runtime condition the caller could handle.
func statusError(st engine.Status) error {
	if st == engine.StatusOK {
		return nil
	}
	if err, ok := statusErrors[st]; ok {
		return err
	}
	panic(fmt.Sprintf("detour: unexpected engine status %v", st))
}
