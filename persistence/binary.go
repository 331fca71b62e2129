package persistence

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// MaxSequenceLen bounds length prefixes accepted by the reader.
// A corrupt length would otherwise trigger an enormous allocation.
const MaxSequenceLen = 1 << 40

// ErrSequenceTooLong is returned when a length prefix exceeds MaxSequenceLen.
var ErrSequenceTooLong = errors.New("sequence length exceeds limit")

// chunkElems is the number of elements encoded per scratch buffer flush.
const chunkElems = 4096

// Writer writes fixed-width little-endian values.
type Writer struct {
	w       io.Writer
	scratch [8]byte
	buf     []byte
	n       int64
}

// NewWriter creates a new binary writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// BytesWritten returns the number of bytes written so far.
func (bw *Writer) BytesWritten() int64 { return bw.n }

func (bw *Writer) write(p []byte) error {
	n, err := bw.w.Write(p)
	bw.n += int64(n)
	return err
}

// WriteInt32 writes a signed 32-bit integer.
func (bw *Writer) WriteInt32(v int32) error {
	return bw.WriteUint32(uint32(v))
}

// WriteUint32 writes an unsigned 32-bit integer.
func (bw *Writer) WriteUint32(v uint32) error {
	binary.LittleEndian.PutUint32(bw.scratch[:4], v)
	return bw.write(bw.scratch[:4])
}

// WriteUint64 writes an unsigned 64-bit integer.
func (bw *Writer) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(bw.scratch[:8], v)
	return bw.write(bw.scratch[:8])
}

// WriteFloat32 writes an IEEE-754 single precision float.
func (bw *Writer) WriteFloat32(v float32) error {
	return bw.WriteUint32(math.Float32bits(v))
}

func (bw *Writer) chunk(elemSize int) []byte {
	if need := chunkElems * elemSize; cap(bw.buf) < need {
		bw.buf = make([]byte, need)
	}
	return bw.buf[:chunkElems*elemSize]
}

// WriteUint64Slice writes a length-prefixed uint64 sequence.
func (bw *Writer) WriteUint64Slice(s []uint64) error {
	if err := bw.WriteUint64(uint64(len(s))); err != nil {
		return err
	}
	buf := bw.chunk(8)
	for len(s) > 0 {
		n := min(len(s), chunkElems)
		for i, v := range s[:n] {
			binary.LittleEndian.PutUint64(buf[i*8:], v)
		}
		if err := bw.write(buf[:n*8]); err != nil {
			return err
		}
		s = s[n:]
	}
	return nil
}

// WriteUint32Slice writes a length-prefixed uint32 sequence.
func (bw *Writer) WriteUint32Slice(s []uint32) error {
	if err := bw.WriteUint64(uint64(len(s))); err != nil {
		return err
	}
	buf := bw.chunk(4)
	for len(s) > 0 {
		n := min(len(s), chunkElems)
		for i, v := range s[:n] {
			binary.LittleEndian.PutUint32(buf[i*4:], v)
		}
		if err := bw.write(buf[:n*4]); err != nil {
			return err
		}
		s = s[n:]
	}
	return nil
}

// WriteFloat32Slice writes a length-prefixed float32 sequence.
func (bw *Writer) WriteFloat32Slice(s []float32) error {
	if err := bw.WriteUint64(uint64(len(s))); err != nil {
		return err
	}
	return bw.WriteFloat32Raw(s)
}

// WriteFloat32Raw writes a float32 array without a length prefix.
func (bw *Writer) WriteFloat32Raw(s []float32) error {
	buf := bw.chunk(4)
	for len(s) > 0 {
		n := min(len(s), chunkElems)
		for i, v := range s[:n] {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if err := bw.write(buf[:n*4]); err != nil {
			return err
		}
		s = s[n:]
	}
	return nil
}

// WritePairs writes a length-prefixed sequence of (uint32, float32) pairs.
// at returns the i-th pair.
func (bw *Writer) WritePairs(count int, at func(i int) (uint32, float32)) error {
	if err := bw.WriteUint64(uint64(count)); err != nil {
		return err
	}
	buf := bw.chunk(8)
	for start := 0; start < count; start += chunkElems {
		n := min(count-start, chunkElems)
		for i := 0; i < n; i++ {
			k, v := at(start + i)
			binary.LittleEndian.PutUint32(buf[i*8:], k)
			binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(v))
		}
		if err := bw.write(buf[:n*8]); err != nil {
			return err
		}
	}
	return nil
}

// Reader reads fixed-width little-endian values.
type Reader struct {
	r       io.Reader
	scratch [8]byte
	buf     []byte
	n       int64
}

// NewReader creates a new binary reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// BytesRead returns the number of bytes consumed so far.
func (br *Reader) BytesRead() int64 { return br.n }

func (br *Reader) readFull(p []byte) error {
	n, err := io.ReadFull(br.r, p)
	br.n += int64(n)
	if errors.Is(err, io.EOF) {
		// A clean EOF before any byte is still a truncation for a fixed-width value.
		return io.ErrUnexpectedEOF
	}
	return err
}

// ReadInt32 reads a signed 32-bit integer.
func (br *Reader) ReadInt32() (int32, error) {
	v, err := br.ReadUint32()
	return int32(v), err
}

// ReadUint32 reads an unsigned 32-bit integer.
func (br *Reader) ReadUint32() (uint32, error) {
	if err := br.readFull(br.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(br.scratch[:4]), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (br *Reader) ReadUint64() (uint64, error) {
	if err := br.readFull(br.scratch[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(br.scratch[:8]), nil
}

// ReadFloat32 reads an IEEE-754 single precision float.
func (br *Reader) ReadFloat32() (float32, error) {
	v, err := br.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadLen reads a length prefix and checks it against MaxSequenceLen.
func (br *Reader) ReadLen() (int, error) {
	n, err := br.ReadUint64()
	if err != nil {
		return 0, err
	}
	if n > MaxSequenceLen || n > math.MaxInt {
		return 0, fmt.Errorf("%w: %d", ErrSequenceTooLong, n)
	}
	return int(n), nil
}

func (br *Reader) chunk(elemSize int) []byte {
	if need := chunkElems * elemSize; cap(br.buf) < need {
		br.buf = make([]byte, need)
	}
	return br.buf[:chunkElems*elemSize]
}

// ReadUint64Slice reads a length-prefixed uint64 sequence.
func (br *Reader) ReadUint64Slice() ([]uint64, error) {
	count, err := br.ReadLen()
	if err != nil {
		return nil, err
	}
	// Grow by appending so a lying prefix fails on read, not on allocation.
	out := make([]uint64, 0, min(count, chunkElems))
	buf := br.chunk(8)
	for remaining := count; remaining > 0; {
		n := min(remaining, chunkElems)
		if err := br.readFull(buf[:n*8]); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			out = append(out, binary.LittleEndian.Uint64(buf[i*8:]))
		}
		remaining -= n
	}
	return out, nil
}

// ReadUint32Slice reads a length-prefixed uint32 sequence.
func (br *Reader) ReadUint32Slice() ([]uint32, error) {
	count, err := br.ReadLen()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, min(count, chunkElems))
	buf := br.chunk(4)
	for remaining := count; remaining > 0; {
		n := min(remaining, chunkElems)
		if err := br.readFull(buf[:n*4]); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			out = append(out, binary.LittleEndian.Uint32(buf[i*4:]))
		}
		remaining -= n
	}
	return out, nil
}

// ReadFloat32Slice reads a length-prefixed float32 sequence.
func (br *Reader) ReadFloat32Slice() ([]float32, error) {
	count, err := br.ReadLen()
	if err != nil {
		return nil, err
	}
	return br.ReadFloat32Raw(count)
}

// ReadFloat32Raw reads count float32 values that carry no length prefix.
func (br *Reader) ReadFloat32Raw(count int) ([]float32, error) {
	if count < 0 || count > MaxSequenceLen {
		return nil, fmt.Errorf("%w: %d", ErrSequenceTooLong, count)
	}
	out := make([]float32, 0, min(count, chunkElems))
	buf := br.chunk(4)
	for remaining := count; remaining > 0; {
		n := min(remaining, chunkElems)
		if err := br.readFull(buf[:n*4]); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
		}
		remaining -= n
	}
	return out, nil
}

// ReadPairs reads a length-prefixed sequence of (uint32, float32) pairs,
// handing each one to emit in order.
func (br *Reader) ReadPairs(emit func(k uint32, v float32)) (int, error) {
	count, err := br.ReadLen()
	if err != nil {
		return 0, err
	}
	buf := br.chunk(8)
	for remaining := count; remaining > 0; {
		n := min(remaining, chunkElems)
		if err := br.readFull(buf[:n*8]); err != nil {
			return 0, err
		}
		for i := 0; i < n; i++ {
			emit(binary.LittleEndian.Uint32(buf[i*8:]), math.Float32frombits(binary.LittleEndian.Uint32(buf[i*8+4:])))
		}
		remaining -= n
	}
	return count, nil
}

// SaveToFile is a helper to save data to a file.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	// Write to a temp file in the same directory to ensure rename is atomic.
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

// LoadFromFile is a helper to load data from a file.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, 256*1024)
	return readFunc(buf)
}
