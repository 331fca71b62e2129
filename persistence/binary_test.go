package persistence

import (
	"bytes"
	"errors"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryFormat_WriteRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteInt32(-1))
	require.NoError(t, w.WriteUint32(0xdeadbeef))
	require.NoError(t, w.WriteUint64(math.MaxUint64))
	require.NoError(t, w.WriteFloat32(3.5))
	require.NoError(t, w.WriteUint64Slice([]uint64{0, 2, 3}))
	require.NoError(t, w.WriteUint32Slice([]uint32{7, 8}))
	require.NoError(t, w.WriteFloat32Slice([]float32{1.5, -2}))
	require.NoError(t, w.WriteFloat32Raw([]float32{0.25, 0.5}))
	pairs := [][2]float32{{1, 1.0}, {3, 2.5}}
	require.NoError(t, w.WritePairs(len(pairs), func(i int) (uint32, float32) {
		return uint32(pairs[i][0]), pairs[i][1]
	}))

	require.Equal(t, int64(buf.Len()), w.BytesWritten())

	r := NewReader(&buf)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-1), i32)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), u64)

	f, err := r.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f)

	ptr, err := r.ReadUint64Slice()
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2, 3}, ptr)

	idx, err := r.ReadUint32Slice()
	require.NoError(t, err)
	assert.Equal(t, []uint32{7, 8}, idx)

	fs, err := r.ReadFloat32Slice()
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2}, fs)

	raw, err := r.ReadFloat32Raw(2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5}, raw)

	var keys []uint32
	var vals []float32
	n, err := r.ReadPairs(func(k uint32, v float32) {
		keys = append(keys, k)
		vals = append(vals, v)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint32{1, 3}, keys)
	assert.Equal(t, []float32{1.0, 2.5}, vals)

	_, err = r.ReadUint32()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestBinaryFormat_LittleEndianLayout(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteInt32(-21759))
	require.NoError(t, w.WriteUint64Slice([]uint64{1}))

	assert.Equal(t, []byte{
		0x01, 0xab, 0xff, 0xff,
		0x01, 0, 0, 0, 0, 0, 0, 0,
		0x01, 0, 0, 0, 0, 0, 0, 0,
	}, buf.Bytes())
}

func TestBinaryFormat_LargeSliceCrossesChunks(t *testing.T) {
	in := make([]uint64, chunkElems*2+17)
	for i := range in {
		in[i] = uint64(i * 3)
	}

	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteUint64Slice(in))

	out, err := NewReader(&buf).ReadUint64Slice()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBinaryFormat_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteUint64Slice([]uint64{1, 2, 3}))
	data := buf.Bytes()[:buf.Len()-3]

	_, err := NewReader(bytes.NewReader(data)).ReadUint64Slice()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = NewReader(bytes.NewReader(nil)).ReadInt32()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestBinaryFormat_OversizedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf).WriteUint64(MaxSequenceLen+1))

	_, err := NewReader(&buf).ReadFloat32Slice()
	assert.True(t, errors.Is(err, ErrSequenceTooLong))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestBinaryFormat_WriteError(t *testing.T) {
	w := NewWriter(failingWriter{})
	require.Error(t, w.WriteUint64Slice([]uint64{1}))
	require.Error(t, w.WriteFloat32Raw([]float32{1}))
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	err := SaveToFile(path, func(w io.Writer) error {
		return NewWriter(w).WriteFloat32Slice([]float32{1.1, 2.2, 3.3})
	})
	require.NoError(t, err)

	var got []float32
	err = LoadFromFile(path, func(r io.Reader) error {
		var err error
		got, err = NewReader(r).ReadFloat32Slice()
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1.1, 2.2, 3.3}, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not survive a successful save")
}

func TestSaveToFile_FailureKeepsTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	err := SaveToFile(path, func(io.Writer) error { return errors.New("boom") })
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestChecksumWriterReader(t *testing.T) {
	payload := []byte("sparse rows")

	var buf bytes.Buffer
	cw := NewChecksumWriter(&buf)
	_, err := cw.Write(payload[:6])
	require.NoError(t, err)
	_, err = cw.Write(payload[6:])
	require.NoError(t, err)
	assert.Equal(t, crc32.ChecksumIEEE(payload), cw.Sum())

	// A partial read still verifies: the rest is drained by Verify.
	cr := NewChecksumReader(bytes.NewReader(buf.Bytes()))
	head := make([]byte, 3)
	_, err = io.ReadFull(cr, head)
	require.NoError(t, err)
	require.NoError(t, cr.Verify(cw.Sum()))

	cr = NewChecksumReader(bytes.NewReader(payload))
	err = cr.Verify(0)
	var mismatch *ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, crc32.ChecksumIEEE(payload), mismatch.Actual)
	assert.Equal(t, int64(len(payload)), mismatch.Bytes)
}

type shortWriter struct{ limit int }

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.limit {
		return w.limit, io.ErrShortWrite
	}
	return len(p), nil
}

func TestChecksumWriter_CountsAcceptedBytesOnly(t *testing.T) {
	cw := NewChecksumWriter(&shortWriter{limit: 4})
	_, err := cw.Write([]byte("abcdefgh"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, crc32.ChecksumIEEE([]byte("abcd")), cw.Sum())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, assert.AnError }

func TestChecksumReader_VerifyPropagatesReadError(t *testing.T) {
	cr := NewChecksumReader(failingReader{})
	assert.ErrorIs(t, cr.Verify(0), assert.AnError)
}
