package engine

import (
	"runtime"
	"unsafe" // also required for go:linkname
)

// The declarations below mirror the runtime's pclntab structures. They must
// stay layout-identical to runtime/symtab.go for the running Go version;
// any drift breaks function length lookups.

type funcInfo struct {
	*_func
	datap *moduledata
}

type _func struct {
	entryOff uint32 // start pc, as offset from moduledata.text
	nameOff  int32  // function name, as index into moduledata.funcnametab

	args        int32
	deferreturn uint32

	pcsp      uint32
	pcfile    uint32
	pcln      uint32
	npcdata   uint32
	cuOffset  uint32
	startLine int32
	funcID    uint8
	flag      uint8
	_         [1]byte // pad
	nfuncdata uint8   // must be last, must end on a uint32-aligned boundary
}

// moduledata records the layout of the executable image. It is written by
// the linker; only the prefix used here is declared.
type moduledata struct {
	pcHeader     *pcHeader
	funcnametab  []byte
	cutab        []uint32
	filetab      []byte
	pctab        []byte
	pclntable    []byte
	ftab         []functab
	findfunctab  uintptr
	minpc, maxpc uintptr

	text, etext           uintptr
	noptrdata, enoptrdata uintptr
	data, edata           uintptr
	bss, ebss             uintptr
	noptrbss, enoptrbss   uintptr
	covctrs, ecovctrs     uintptr
	end, gcdata, gcbss    uintptr
	types, etypes         uintptr
	rodata                uintptr
	gofunc                uintptr

	// Struct continues, omitting unused fields.
}

// pcHeader holds data used by the pclntab lookups.
type pcHeader struct {
	magic          uint32  // 0xFFFFFFF1
	pad1, pad2     uint8   // 0,0
	minLC          uint8   // min instruction size
	ptrSize        uint8   // size of a ptr in bytes
	nfunc          int     // number of functions in the module
	nfiles         uint    // number of entries in the file tab
	textStart      uintptr // base for function entry PC offsets in this module
	funcnameOffset uintptr
	cuOffset       uintptr
	filetabOffset  uintptr
	pctabOffset    uintptr
	pclnOffset     uintptr
}

type functab struct {
	entryoff uint32 // relative to runtime.text
	funcoff  uint32
}

//go:linkname findfunc runtime.findfunc
func findfunc(pc uintptr) funcInfo

// codeRegion returns the instructions of the function starting at entry as
// a slice aliasing live text memory. The length is the distance from entry
// to the next function in the module's function table. It reports false
// when entry is not the start of a known function.
func codeRegion(entry uintptr) ([]byte, bool) {
	info := findfunc(entry)
	if info._func == nil || info.datap == nil {
		return nil, false
	}
	if info.datap.text+uintptr(info.entryOff) != entry {
		return nil, false
	}

	funcOffset := uint32(entry - info.datap.text)
	length := uint32(info.datap.etext - entry)
	for _, ft := range info.datap.ftab {
		if ft.entryoff <= funcOffset {
			continue
		}
		if d := ft.entryoff - funcOffset; d < length {
			length = d
		}
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(entry)), int(length)), true
}

// textStart reports the run-time base address of this module's text
// segment.
func textStart() uintptr {
	pc, _, _, ok := runtime.Caller(0)
	if !ok {
		return 0
	}
	info := findfunc(pc)
	if info._func == nil || info.datap == nil {
		return 0
	}
	return info.datap.text
}
