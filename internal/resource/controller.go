// Package resource bounds the memory and read bandwidth used by concurrent
// dataset conversions.
package resource

import (
	"context"
	"io"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config sets the limits of a Controller. Zero means unlimited.
type Config struct {
	// MemoryLimitBytes caps the bytes reserved at once via AcquireMemory.
	MemoryLimitBytes int64
	// IOLimitBytesPerSec caps the read rate of readers wrapped by Reader.
	IOLimitBytesPerSec int
}

// Controller enforces a Config. A nil Controller imposes no limits.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), cfg.IOLimitBytesPerSec)
	}
	return c
}

// reservation clamps a request to the limit so a single oversized job
// still runs, alone.
func (c *Controller) reservation(bytes int64) int64 {
	if c.cfg.MemoryLimitBytes > 0 && bytes > c.cfg.MemoryLimitBytes {
		return c.cfg.MemoryLimitBytes
	}
	return bytes
}

// AcquireMemory reserves bytes, blocking until they are available or ctx is
// canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	n := c.reservation(bytes)
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, n); err != nil {
			return err
		}
	}
	c.memUsed.Add(n)
	return nil
}

// ReleaseMemory releases a reservation made with the same byte count.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	n := c.reservation(bytes)
	if c.memSem != nil {
		c.memSem.Release(n)
	}
	c.memUsed.Add(-n)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}

// Reader wraps r so that reads respect the IO limit.
func (c *Controller) Reader(ctx context.Context, r io.Reader) io.Reader {
	if c == nil || c.ioLimiter == nil {
		return r
	}
	return &throttledReader{ctx: ctx, r: r, c: c}
}

type throttledReader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

func (t *throttledReader) Read(p []byte) (int, error) {
	// WaitN rejects requests above the burst size.
	if burst := t.c.ioLimiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.c.AcquireIO(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
