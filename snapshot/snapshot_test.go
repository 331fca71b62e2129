package snapshot

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/csrgo"
	"github.com/hupe1980/csrgo/blobstore"
	"github.com/hupe1980/csrgo/codec"
	"github.com/hupe1980/csrgo/parser"
	"github.com/hupe1980/csrgo/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testDataset(t *testing.T, rows int) *csrgo.Store {
	t.Helper()
	var sb strings.Builder
	for i := range rows {
		fmt.Fprintf(&sb, "%d 1:1 4:0.5 %d:2\n", i%2, 10+i%7)
	}
	ds, err := csrgo.FromParser(parser.NewLibSVMParser(strings.NewReader(sb.String())))
	require.NoError(t, err)
	return ds
}

func TestWriteRead_RoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		compression Compression
	}{
		{"none", CompressionNone},
		{"lz4", CompressionLZ4},
		{"zstd", CompressionZSTD},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := blobstore.NewMemoryStore()
			ds := testDataset(t, 500)

			m, err := Write(ctx, store, "train.csr", ds, Options{Compression: tc.compression, Now: func() time.Time { return fixedNow }})
			require.NoError(t, err)
			assert.Equal(t, tc.compression.String(), m.Compression)
			assert.Equal(t, Version, m.Version)
			assert.Equal(t, uint64(500), m.Summary.Rows)
			assert.Equal(t, uint64(1500), m.Summary.NonZero)
			if tc.compression != CompressionNone {
				assert.Less(t, m.StoredBytes, m.RawBytes)
			}

			blob, err := blobstore.ReadAll(ctx, store, "train.csr")
			require.NoError(t, err)
			assert.Equal(t, m.StoredBytes, uint64(len(blob)))
			assert.Equal(t, []byte("CSRS"), blob[:4])

			loaded, err := Read(ctx, store, "train.csr", Options{})
			require.NoError(t, err)
			assert.True(t, loaded.Equal(ds))

			stat, err := Stat(ctx, store, "train.csr", Options{})
			require.NoError(t, err)
			assert.Equal(t, m.Checksum, stat.Checksum)
			assert.Equal(t, m.Summary, stat.Summary)
			assert.True(t, fixedNow.Equal(stat.CreatedAt))
		})
	}
}

func TestWrite_ComplexChannel(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	ds := testDataset(t, 3)
	require.NoError(t, ds.SetComplexFeatures(2, []complex64{1 + 1i, 2, 3i}))

	_, err := Write(ctx, store, "c.csr", ds, Options{Compression: CompressionZSTD})
	require.NoError(t, err)

	loaded, err := Read(ctx, store, "c.csr", Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), loaded.ComplexIndex())
	assert.Equal(t, ds.ComplexFeatures(), loaded.ComplexFeatures())
}

func TestWrite_UnknownCompression(t *testing.T) {
	_, err := Write(context.Background(), blobstore.NewMemoryStore(), "x", testDataset(t, 1), Options{Compression: 9})
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestWrite_ContractViolationWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	ds := testDataset(t, 2)
	// Make the complex channel disagree with the row count.
	info := ds.Info()
	info.NumRow = 5
	require.NoError(t, ds.SetComplexFeatures(1, []complex64{1, 2}))

	_, err := Write(ctx, store, "bad.csr", ds, Options{})
	var cv *csrgo.ContractViolation
	require.ErrorAs(t, err, &cv)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

type failingStore struct {
	*blobstore.MemoryStore
}

func (s failingStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	w, err := s.MemoryStore.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &failingWriter{WritableBlob: w}, nil
}

type failingWriter struct {
	blobstore.WritableBlob
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > 1 {
		return 0, errors.New("disk full")
	}
	return w.WritableBlob.Write(p)
}

func (w *failingWriter) Abort() error {
	return blobstore.Abort(w.WritableBlob)
}

func TestWrite_AbortsOnWriteError(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()

	_, err := Write(ctx, failingStore{mem}, "train.csr", testDataset(t, 4), Options{})
	require.ErrorContains(t, err, "disk full")

	names, err := mem.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRead_NotFound(t *testing.T) {
	_, err := Read(context.Background(), blobstore.NewMemoryStore(), "missing", Options{})
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func writeRaw(t *testing.T, store blobstore.BlobStore, name string, mutate func([]byte) []byte) {
	t.Helper()
	ctx := context.Background()
	_, err := Write(ctx, store, name, testDataset(t, 8), Options{SkipManifest: true})
	require.NoError(t, err)
	data, err := blobstore.ReadAll(ctx, store, name)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, name, mutate(data)))
}

func TestRead_EnvelopeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }, csrgo.ErrMagicMismatch},
		{"short", func(b []byte) []byte { return b[:10] }, csrgo.ErrTruncated},
		{"truncated payload", func(b []byte) []byte { return b[:len(b)-8] }, csrgo.ErrTruncated},
		{"trailing", func(b []byte) []byte { return append(b, 0, 0) }, ErrTrailingData},
		{"version", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[4:], 7); return b }, ErrUnsupportedVersion},
		{"compression", func(b []byte) []byte { b[6] = 42; return b }, ErrUnknownCompression},
		{"raw length", func(b []byte) []byte { binary.LittleEndian.PutUint64(b[8:], 1<<50); return b }, persistence.ErrSequenceTooLong},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			writeRaw(t, store, "d.csr", tc.mutate)

			_, err := Read(context.Background(), store, "d.csr", Options{})
			var fe *csrgo.FormatError
			require.ErrorAs(t, err, &fe)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRead_ChecksumMismatch(t *testing.T) {
	store := blobstore.NewMemoryStore()
	writeRaw(t, store, "d.csr", func(b []byte) []byte {
		b[len(b)-trailerSize-1] ^= 0xff
		return b
	})

	_, err := Read(context.Background(), store, "d.csr", Options{})
	var fe *csrgo.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "snapshot checksum", fe.Section)
	var mismatch *persistence.ChecksumMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestRead_ChecksumOutranksDecodeError(t *testing.T) {
	store := blobstore.NewMemoryStore()
	writeRaw(t, store, "d.csr", func(b []byte) []byte {
		b[headerSize] ^= 0xff // first byte of the dataset magic
		return b
	})

	_, err := Read(context.Background(), store, "d.csr", Options{})
	var fe *csrgo.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "snapshot checksum", fe.Section)
	assert.NotErrorIs(t, err, csrgo.ErrMagicMismatch)
}

func forgeEnvelope(c Compression, rawLen uint64, payload []byte) []byte {
	b := make([]byte, headerSize, headerSize+len(payload)+trailerSize)
	copy(b, envelopeMagic[:])
	binary.LittleEndian.PutUint16(b[4:], Version)
	b[6] = byte(c)
	binary.LittleEndian.PutUint64(b[8:], rawLen)
	binary.LittleEndian.PutUint64(b[16:], uint64(len(payload)))
	b = append(b, payload...)
	return append(b, 0, 0, 0, 0)
}

func TestRead_ForgedRawLength(t *testing.T) {
	raw := []byte(strings.Repeat("csr ", 256))
	zstdPayload, used, err := compress(raw, CompressionZSTD)
	require.NoError(t, err)
	require.Equal(t, CompressionZSTD, used)

	tests := []struct {
		name string
		data []byte
	}{
		{"lz4 huge raw length", forgeEnvelope(CompressionLZ4, 1<<40, []byte{0x10, 0x00})},
		{"lz4 beyond block ratio", forgeEnvelope(CompressionLZ4, 2*255+17, []byte{0x10, 0x00})},
		{"zstd huge raw length", forgeEnvelope(CompressionZSTD, 1<<40, zstdPayload)},
		{"zstd frame size disagrees", forgeEnvelope(CompressionZSTD, uint64(len(raw))*64, zstdPayload)},
		{"zstd garbage", forgeEnvelope(CompressionZSTD, 1<<30, []byte{1, 2, 3})},
		{"none length disagrees", forgeEnvelope(CompressionNone, 1<<40, []byte{1, 2})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			require.NoError(t, store.Put(context.Background(), "d.csr", tc.data))

			_, err := Read(context.Background(), store, "d.csr", Options{})
			var fe *csrgo.FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "snapshot payload", fe.Section)
		})
	}
}

func TestStat_RebuildsMissingManifest(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	ds := testDataset(t, 20)

	m, err := Write(ctx, store, "d.csr", ds, Options{Compression: CompressionLZ4, SkipManifest: true})
	require.NoError(t, err)

	_, err = store.Open(ctx, ManifestName("d.csr"))
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	stat, err := Stat(ctx, store, "d.csr", Options{})
	require.NoError(t, err)
	assert.Equal(t, m.Checksum, stat.Checksum)
	assert.Equal(t, m.RawBytes, stat.RawBytes)
	assert.Equal(t, m.StoredBytes, stat.StoredBytes)
	assert.Equal(t, m.Compression, stat.Compression)
	assert.Equal(t, ds.Summary(), stat.Summary)
	assert.True(t, stat.CreatedAt.IsZero())
}

func TestStat_BadManifest(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, ManifestName("d.csr"), []byte("{not json")))

	_, err := Stat(ctx, store, "d.csr", Options{Codec: codec.JSON{}})
	var fe *csrgo.FormatError
	assert.ErrorAs(t, err, &fe)
}

func TestListDelete(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	ds := testDataset(t, 2)

	for _, name := range []string{"parts/b.csr", "parts/a.csr", "other.csr"} {
		_, err := Write(ctx, store, name, ds, Options{})
		require.NoError(t, err)
	}

	names, err := List(ctx, store, "parts/")
	require.NoError(t, err)
	assert.Equal(t, []string{"parts/a.csr", "parts/b.csr"}, names)

	require.NoError(t, Delete(ctx, store, "parts/a.csr"))
	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other.csr", "other.csr.manifest.json", "parts/b.csr", "parts/b.csr.manifest.json"}, all)
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in   string
		want Compression
	}{
		{"", CompressionNone},
		{"none", CompressionNone},
		{"LZ4", CompressionLZ4},
		{"zstd", CompressionZSTD},
		{"zst", CompressionZSTD},
	}
	for _, tc := range tests {
		got, err := ParseCompression(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseCompression("brotli")
	assert.ErrorIs(t, err, ErrUnknownCompression)
	assert.Equal(t, "compression(9)", Compression(9).String())
}

func TestCompress_IncompressibleFallsBack(t *testing.T) {
	raw := make([]byte, 4096)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		out, used, err := compress(raw, c)
		require.NoError(t, err)
		assert.Equal(t, CompressionNone, used)
		assert.Equal(t, raw, out)
	}
}

func TestDecompress_SizeMismatch(t *testing.T) {
	raw := []byte(strings.Repeat("csr ", 256))
	out, used, err := compress(raw, CompressionZSTD)
	require.NoError(t, err)
	require.Equal(t, CompressionZSTD, used)

	_, err = decompress(out, CompressionZSTD, uint64(len(raw)+1))
	assert.Error(t, err)

	got, err := decompress(out, CompressionZSTD, uint64(len(raw)))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}
