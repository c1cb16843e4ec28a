package detour

import (
	"fmt"
	"os"

	"github.com/pboyd/detour/internal/cell"
)

// PanicInfo describes a panic intercepted at a detour boundary.
type PanicInfo struct {
	// Hook is the declared name of the hook whose detour panicked.
	Hook string
	// Payload is the value the detour panicked with.
	Payload any
}

// PanicHandler receives intercepted detour panics. The process terminates
// after the handler returns; the handler's job is reporting, not
// recovery.
type PanicHandler func(PanicInfo)

var panicHandler = cell.NewRW(PanicHandler(defaultPanicHandler))

// exitProcess is wrapped for testability.
var exitProcess = os.Exit

func defaultPanicHandler(info PanicInfo) {
	fmt.Fprintf(os.Stderr, "panic in hook %q detour: %v\n", info.Hook, info.Payload)
}

// SetPanicHandler replaces the process-wide handler for detour panics.
// Passing nil restores the default handler, which prints the panic to
// stderr. Swapping the handler while detours run is safe.
func SetPanicHandler(h PanicHandler) {
	if h == nil {
		h = defaultPanicHandler
	}
	panicHandler.Store(h)
}

// ContainPanic stops a panic from unwinding out of a detour. Defer it as
// the first statement of a thunk or detour body:
//
//	func myThunk(x int) int {
//		defer detour.ContainPanic("myHook")
//		return myHook.Detour()(x)
//	}
//
// When the guarded body panics, ContainPanic recovers the payload, passes
// it with the hook name to the panic handler, and terminates the process
// with exit code 2. A panic that escaped into patched frames cannot be
// resumed, so termination happens even if the handler itself panics. When
// the body returns normally, ContainPanic does nothing.
func ContainPanic(hookName string) {
	v := recover()
	if v == nil {
		return
	}

	defer exitProcess(2)
	panicHandler.Load()(PanicInfo{Hook: hookName, Payload: v})
}
