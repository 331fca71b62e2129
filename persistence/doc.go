// Package persistence provides the little-endian primitives used by the
// dataset binary format.
//
// All integers and floats are written in little-endian byte order with fixed
// widths. Sequences are either length-prefixed (a uint64 count followed by the
// elements) or raw, in which case the reader must know the count up front.
//
// Reader methods return io.ErrUnexpectedEOF (possibly wrapped) when the
// underlying stream ends before a value is complete, so callers can
// distinguish truncation from other I/O failures with errors.Is.
package persistence
