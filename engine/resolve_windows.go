//go:build windows

package engine

import "golang.org/x/sys/windows"

// ResolveSymbol translates a module and function name pair into a code
// address through the loader's module table. The module must already be
// loaded; resolution never loads a library. An empty module names the
// running executable.
func (e *Engine) ResolveSymbol(module, function string) (uintptr, Status) {
	var (
		handle windows.Handle
		err    error
	)
	if module == "" {
		handle, err = windows.GetModuleHandle(nil)
	} else {
		var name *uint16
		name, err = windows.UTF16PtrFromString(module)
		if err != nil {
			return 0, StatusModuleNotFound
		}
		handle, err = windows.GetModuleHandle(name)
	}
	if err != nil {
		return 0, StatusModuleNotFound
	}

	proc, err := windows.GetProcAddress(handle, function)
	if err != nil {
		return 0, StatusFunctionNotFound
	}
	return proc, StatusOK
}
