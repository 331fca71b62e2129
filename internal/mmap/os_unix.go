//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

var madvice = [...]int{
	AccessDefault:    unix.MADV_NORMAL,
	AccessSequential: unix.MADV_SEQUENTIAL,
	AccessRandom:     unix.MADV_RANDOM,
	AccessWillNeed:   unix.MADV_WILLNEED,
	AccessDontNeed:   unix.MADV_DONTNEED,
}

func mapFile(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

// Mappings start on a page boundary, so data is always a valid madvise range.
func advise(data []byte, pattern AccessPattern) error {
	advice := unix.MADV_NORMAL
	if pattern >= 0 && int(pattern) < len(madvice) {
		advice = madvice[pattern]
	}
	return unix.Madvise(data, advice)
}
