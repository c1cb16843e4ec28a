package engine

import "fmt"

// Status is the result code of every engine operation. The set is closed;
// the core layer maps each code to exactly one exported error and treats
// anything else as a bug.
type Status int8

const (
	StatusUnknown Status = iota - 1
	StatusOK
	StatusAlreadyInitialized
	StatusNotInitialized
	StatusAlreadyCreated
	StatusNotCreated
	StatusAlreadyEnabled
	StatusDisabled
	StatusNotExecutable
	StatusUnsupportedFunction
	StatusMemoryAlloc
	StatusMemoryProtect
	StatusModuleNotFound
	StatusFunctionNotFound
)

// AllHooks addresses every created hook in enable, disable and queue
// operations.
const AllHooks uintptr = 0

var statusNames = map[Status]string{
	StatusUnknown:             "unknown",
	StatusOK:                  "ok",
	StatusAlreadyInitialized:  "already-initialized",
	StatusNotInitialized:      "not-initialized",
	StatusAlreadyCreated:      "already-created",
	StatusNotCreated:          "not-created",
	StatusAlreadyEnabled:      "already-enabled",
	StatusDisabled:            "disabled",
	StatusNotExecutable:       "not-executable",
	StatusUnsupportedFunction: "unsupported-function",
	StatusMemoryAlloc:         "memory-alloc-failure",
	StatusMemoryProtect:       "memory-protect-failure",
	StatusModuleNotFound:      "module-not-found",
	StatusFunctionNotFound:    "function-not-found",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int8(s))
}
