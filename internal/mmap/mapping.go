package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

var _ io.ReaderAt = (*Mapping)(nil)

// Open maps the file at path. An empty file yields an empty mapping.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := int(fi.Size())
	switch {
	case fi.Size() < 0 || int64(size) != fi.Size():
		return nil, ErrInvalidSize
	case size == 0:
		return &Mapping{}, nil
	}

	data, unmap, err := mapFile(f, size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Close releases the mapping. Later calls do nothing.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.unmap == nil {
		return nil
	}
	return m.unmap(m.data)
}

// Bytes returns the mapped bytes, or nil once the mapping is closed.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size is the mapped length, which stays valid after Close.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Advise hints how the mapping will be read.
func (m *Mapping) Advise(pattern AccessPattern) error {
	switch {
	case m.closed.Load():
		return ErrClosed
	case len(m.data) == 0:
		return nil
	}
	return advise(m.data, pattern)
}

func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case m.closed.Load():
		return 0, ErrClosed
	case off < 0:
		return 0, ErrInvalidOffset
	case off >= int64(len(m.data)):
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
