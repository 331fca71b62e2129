package persistence

import (
	"fmt"
	"hash/crc32"
	"io"
)

// Snapshot payloads carry an IEEE CRC32 of their decoded bytes. It catches
// storage corruption; it is not a tamper check.

// ChecksumWriter passes writes through to w and folds every byte that w
// accepted into a CRC32.
type ChecksumWriter struct {
	w   io.Writer
	crc uint32
}

// NewChecksumWriter returns a ChecksumWriter writing to w.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{w: w}
}

func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.crc = crc32.Update(cw.crc, crc32.IEEETable, p[:n])
	return n, err
}

// Sum returns the CRC32 of everything written so far.
func (cw *ChecksumWriter) Sum() uint32 { return cw.crc }

// ChecksumReader folds every byte read from r into a CRC32 so a decoder can
// consume a payload and verify it in one pass.
type ChecksumReader struct {
	r   io.Reader
	crc uint32
	n   int64
}

// NewChecksumReader returns a ChecksumReader reading from r.
func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{r: r}
}

func (cr *ChecksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.crc = crc32.Update(cr.crc, crc32.IEEETable, p[:n])
	cr.n += int64(n)
	return n, err
}

// Verify reads r to its end and compares the CRC32 of all bytes seen with
// want. Bytes a decoder left unread still count.
func (cr *ChecksumReader) Verify(want uint32) error {
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return err
	}
	if cr.crc != want {
		return &ChecksumMismatchError{Expected: want, Actual: cr.crc, Bytes: cr.n}
	}
	return nil
}

// ChecksumMismatchError reports a payload whose CRC32 differs from the
// recorded one.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
	Bytes    int64
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch over %d bytes: recorded 0x%08x, computed 0x%08x", e.Bytes, e.Expected, e.Actual)
}
