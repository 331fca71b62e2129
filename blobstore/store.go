package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for blob names that are empty, absolute or
// climb out of the store root.
var ErrInvalidName = errors.New("invalid blob name")

// BlobStore stores named, immutable dataset blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes starting at off. It follows io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange returns a reader over at most length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.Writer
	io.Closer
	// Sync flushes buffered data to durable storage where supported.
	Sync() error
}

// Aborter is implemented by WritableBlobs that can discard a pending write.
type Aborter interface {
	Abort() error
}

// Abort discards w if it supports it, and closes it otherwise.
func Abort(w WritableBlob) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll reads the whole content of the named blob.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		// Copy out of the mapping; it is released on Close.
		return append([]byte(nil), data...), nil
	}

	size := b.Size()
	if size == 0 {
		return []byte{}, nil
	}
	rc, err := b.ReadRange(ctx, 0, size)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data := make([]byte, size)
	if _, err := io.ReadFull(rc, data); err != nil {
		return nil, fmt.Errorf("read blob %q: %w", name, err)
	}
	return data, nil
}
