package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestMmap_OpenReadClose(t *testing.T) {
	content := []byte("sparse rows!")
	m, err := Open(writeFile(t, content))
	require.NoError(t, err)

	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())
	require.NoError(t, m.Advise(AccessSequential))

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "rows!", string(buf))

	n, err = m.ReadAt(make([]byte, 10), 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	buf3 := make([]byte, 10)
	n, err = m.ReadAt(buf3, 7)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "close is idempotent")
	assert.Nil(t, m.Bytes())
	assert.Equal(t, ErrClosed, m.Advise(AccessRandom))
	_, err = m.ReadAt(buf, 0)
	assert.Equal(t, ErrClosed, err)
}

func TestMmap_EmptyFile(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
	assert.Nil(t, m.Bytes())
	assert.NoError(t, m.Advise(AccessWillNeed))
}

func TestMmap_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMmap_AdviseAllPatterns(t *testing.T) {
	content := make([]byte, 3*os.Getpagesize()+17)
	m, err := Open(writeFile(t, content))
	require.NoError(t, err)

	for _, p := range []AccessPattern{AccessDefault, AccessSequential, AccessRandom, AccessWillNeed, AccessDontNeed, AccessPattern(99)} {
		assert.NoError(t, m.Advise(p), "pattern %d", p)
	}

	require.NoError(t, m.Close())
	assert.Equal(t, len(content), m.Size(), "size survives close")
}
