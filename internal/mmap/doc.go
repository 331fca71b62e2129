// Package mmap maps dataset files read-only into memory so the local blob
// store can hand out their bytes without copying.
//
// Unix platforms use mmap(2) and madvise(2); Windows uses
// CreateFileMapping/MapViewOfFile and treats access hints as no-ops.
//
// A Mapping may be read concurrently. Close is idempotent, and slices
// returned by Bytes must not be used after Close.
package mmap
