package mmap

import "errors"

// AccessPattern is a hint about how mapped data will be read.
type AccessPattern int

const (
	// AccessDefault requests no specific behavior.
	AccessDefault AccessPattern = iota
	// AccessSequential suits a single front-to-back decode.
	AccessSequential
	// AccessRandom suits scattered range reads.
	AccessRandom
	// AccessWillNeed asks the kernel to prefetch.
	AccessWillNeed
	// AccessDontNeed tells the kernel the pages may be dropped.
	AccessDontNeed
)

var (
	// ErrClosed is returned when attempting to access a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the file size cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrInvalidOffset is returned for negative read offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
