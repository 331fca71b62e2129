package blobstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory BlobStore implementation for tests and
// short-lived pipelines. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ BlobStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

// Open opens a blob for reading. The blob sees a snapshot of the data.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[name]
	if !ok {
		return nil, ErrNotFound
	}
	// Stored slices are never mutated in place, so sharing is safe.
	return &memoryBlob{data: data}, nil
}

// Create creates a new writable blob.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWritableBlob{
		store: m,
		name:  name,
	}, nil
}

// Put writes a blob atomically.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[name] = bytes.Clone(data)
	return nil
}

// Delete removes a blob.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, name)
	return nil
}

// List returns all blobs matching the prefix.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

type memoryBlob struct {
	data []byte
}

func (b *memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *memoryBlob) Close() error {
	return nil
}

func (b *memoryBlob) Size() int64 {
	return int64(len(b.data))
}

func (b *memoryBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(b.data)))
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}

type memoryWritableBlob struct {
	store   *MemoryStore
	name    string
	buf     bytes.Buffer
	aborted bool
}

func (w *memoryWritableBlob) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Close publishes the buffered content.
func (w *memoryWritableBlob) Close() error {
	if w.aborted {
		return nil
	}
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	w.store.blobs[w.name] = bytes.Clone(w.buf.Bytes())
	return nil
}

func (w *memoryWritableBlob) Sync() error {
	return nil
}

// Abort drops the buffered content.
func (w *memoryWritableBlob) Abort() error {
	w.aborted = true
	w.buf.Reset()
	return nil
}
