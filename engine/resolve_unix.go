//go:build unix

package engine

import (
	"debug/elf"
	"debug/macho"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Symbol lookup reads the running executable's own symbol table, so only
// functions in the running image can be resolved. The table is parsed once
// and cached for the life of the process.
var symbolTable struct {
	once sync.Once
	m    map[string]uintptr
	bias uintptr
	err  error
}

// ResolveSymbol translates a module and function name pair into a code
// address. An empty module names the running executable; no other module
// can be resolved on unix.
func (e *Engine) ResolveSymbol(module, function string) (uintptr, Status) {
	exe, err := os.Executable()
	if err != nil {
		return 0, StatusModuleNotFound
	}
	if module != "" && module != exe && module != filepath.Base(exe) {
		return 0, StatusModuleNotFound
	}

	symbolTable.once.Do(func() {
		symbolTable.m, symbolTable.err = readSymbols(exe)
		if symbolTable.err != nil {
			return
		}

		// Symbol values are link-time addresses. Position independent
		// executables are loaded at an arbitrary base, so compute the
		// load bias from a symbol whose run-time address is known.
		if linked, ok := lookup(symbolTable.m, "runtime.text"); ok {
			if text := textStart(); text != 0 {
				symbolTable.bias = text - linked
			}
		}
	})
	if symbolTable.err != nil {
		Logger().Warn("symbol table unavailable",
			zap.String("exe", exe), zap.Error(symbolTable.err))
		return 0, StatusFunctionNotFound
	}

	addr, ok := lookup(symbolTable.m, function)
	if !ok {
		return 0, StatusFunctionNotFound
	}
	return addr + symbolTable.bias, StatusOK
}

// lookup tries the name as given and with a leading underscore, which
// Mach-O symbol tables prepend.
func lookup(m map[string]uintptr, name string) (uintptr, bool) {
	if addr, ok := m[name]; ok {
		return addr, true
	}
	addr, ok := m["_"+name]
	return addr, ok
}

func readSymbols(path string) (map[string]uintptr, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, read := range []func(io.ReaderAt) (map[string]uintptr, error){readELFSymbols, readMachOSymbols} {
		if m, err := read(f); err == nil {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%s: unrecognized object format or stripped symbol table", path)
}

func readELFSymbols(r io.ReaderAt) (map[string]uintptr, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	syms, err := f.Symbols()
	if err != nil {
		return nil, err
	}

	m := make(map[string]uintptr, len(syms))
	for _, s := range syms {
		m[s.Name] = uintptr(s.Value)
	}
	return m, nil
}

func readMachOSymbols(r io.ReaderAt) (map[string]uintptr, error) {
	f, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}
	if f.Symtab == nil {
		return nil, errors.New("no symbol table")
	}

	m := make(map[string]uintptr, len(f.Symtab.Syms))
	for _, s := range f.Symtab.Syms {
		m[s.Name] = uintptr(s.Value)
	}
	return m, nil
}
