//go:build windows

package engine

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	mprotectRX  = windows.PAGE_EXECUTE_READ
	mprotectRWX = windows.PAGE_EXECUTE_READWRITE
)

// mprotect applies flags to every page overlapping buf.
func mprotect(buf []byte, flags int) error {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))

	pageSize := syscall.Getpagesize()

	pageStart := addr - (addr % uintptr(pageSize))
	totalBytes := int(addr-pageStart) + cap(buf)
	regionSize := (totalBytes + pageSize - 1) / pageSize * pageSize

	var oldFlags uint32
	return windows.VirtualProtect(pageStart, uintptr(regionSize), uint32(flags), &oldFlags)
}
