//go:build windows

package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func mapFile(f *os.File, size int) ([]byte, func([]byte) error, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, nil, err
	}
	// The view keeps the mapping object alive.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, nil, err
	}
	unmap := func([]byte) error { return windows.UnmapViewOfFile(addr) }
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), unmap, nil
}

// Access hints have no Windows counterpart worth the extra syscalls.
func advise([]byte, AccessPattern) error { return nil }
