package resource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilControllerIsUnlimited(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireMemory(context.Background(), 1<<40))
	c.ReleaseMemory(1 << 40)
	assert.Zero(t, c.MemoryUsage())
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))

	r := strings.NewReader("data")
	assert.Same(t, r, c.Reader(context.Background(), r))
}

func TestMemoryLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	ctx := context.Background()

	require.NoError(t, c.AcquireMemory(ctx, 60))
	assert.Equal(t, int64(60), c.MemoryUsage())

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMemory(blocked, 50), context.DeadlineExceeded)

	c.ReleaseMemory(60)
	require.NoError(t, c.AcquireMemory(ctx, 50))
	assert.Equal(t, int64(50), c.MemoryUsage())
	c.ReleaseMemory(50)
	assert.Zero(t, c.MemoryUsage())
}

func TestMemoryLimit_OversizedRequestIsClamped(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	ctx := context.Background()

	require.NoError(t, c.AcquireMemory(ctx, 1000))
	assert.Equal(t, int64(100), c.MemoryUsage())
	c.ReleaseMemory(1000)
	assert.Zero(t, c.MemoryUsage())
}

func TestReaderRespectsBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	src := bytes.Repeat([]byte("x"), 3<<20)

	r := c.Reader(context.Background(), bytes.NewReader(src))
	buf := make([]byte, 2<<20)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 1<<20)
}

func TestReaderCanceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 8})
	ctx, cancel := context.WithCancel(context.Background())

	r := c.Reader(ctx, strings.NewReader(strings.Repeat("a", 64)))
	// The first burst is free; the next read has to wait and sees the cancellation.
	_, err := io.ReadFull(r, make([]byte, 8))
	require.NoError(t, err)
	cancel()
	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, context.Canceled)
}
