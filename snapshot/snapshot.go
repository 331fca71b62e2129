package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/csrgo"
	"github.com/hupe1980/csrgo/blobstore"
	"github.com/hupe1980/csrgo/codec"
	"github.com/hupe1980/csrgo/persistence"
)

// Version is the envelope version written by this package.
const Version uint16 = 1

// ManifestSuffix is appended to a snapshot name to form its manifest name.
const ManifestSuffix = ".manifest.json"

const (
	headerSize  = 24
	trailerSize = 4
)

var envelopeMagic = [4]byte{'C', 'S', 'R', 'S'}

var (
	// ErrUnsupportedVersion is returned for envelopes written by a newer version.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")

	// ErrTrailingData is returned when bytes follow the checksum trailer.
	ErrTrailingData = errors.New("trailing data after snapshot")
)

// Options configures snapshot reads and writes.
type Options struct {
	// Compression applied to the payload. Default: CompressionNone.
	Compression Compression

	// Codec encodes the manifest. Default: codec.Default.
	Codec codec.Codec

	// SkipManifest disables writing the manifest sidecar.
	SkipManifest bool

	// Logger receives debug records. Default: csrgo.NoopLogger().
	Logger *csrgo.Logger

	// Now is used to stamp manifests. Default: time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	if o.Logger == nil {
		o.Logger = csrgo.NoopLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Manifest describes a stored snapshot.
type Manifest struct {
	Name        string        `json:"name"`
	Version     uint16        `json:"version"`
	Compression string        `json:"compression"`
	RawBytes    uint64        `json:"raw_bytes"`
	StoredBytes uint64        `json:"stored_bytes"`
	Checksum    uint32        `json:"crc32"`
	Codec       string        `json:"codec"`
	CreatedAt   time.Time     `json:"created_at"`
	Summary     csrgo.Summary `json:"summary"`
}

// ManifestName returns the name of the manifest blob for a snapshot.
func ManifestName(name string) string {
	return name + ManifestSuffix
}

// Write encodes ds into the blob name and, unless disabled, writes its manifest.
func Write(ctx context.Context, store blobstore.BlobStore, name string, ds *csrgo.Store, opts Options) (*Manifest, error) {
	opts = opts.withDefaults()
	if !opts.Compression.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, opts.Compression)
	}
	start := time.Now()

	var raw bytes.Buffer
	cw := persistence.NewChecksumWriter(&raw)
	if err := ds.Save(cw); err != nil {
		return nil, err
	}

	payload, used, err := compress(raw.Bytes(), opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("compress snapshot %q: %w", name, err)
	}

	var header [headerSize]byte
	copy(header[0:4], envelopeMagic[:])
	binary.LittleEndian.PutUint16(header[4:], Version)
	header[6] = byte(used)
	binary.LittleEndian.PutUint64(header[8:], uint64(raw.Len()))
	binary.LittleEndian.PutUint64(header[16:], uint64(len(payload)))

	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.Sum())

	w, err := store.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create snapshot %q: %w", name, err)
	}
	for _, part := range [][]byte{header[:], payload, trailer[:]} {
		if _, err := w.Write(part); err != nil {
			_ = blobstore.Abort(w)
			return nil, fmt.Errorf("write snapshot %q: %w", name, err)
		}
	}
	if err := w.Sync(); err != nil {
		_ = blobstore.Abort(w)
		return nil, fmt.Errorf("sync snapshot %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close snapshot %q: %w", name, err)
	}

	m := &Manifest{
		Name:        name,
		Version:     Version,
		Compression: used.String(),
		RawBytes:    uint64(raw.Len()),
		StoredBytes: uint64(headerSize + len(payload) + trailerSize),
		Checksum:    cw.Sum(),
		Codec:       opts.Codec.Name(),
		CreatedAt:   opts.Now().UTC(),
		Summary:     ds.Summary(),
	}

	if !opts.SkipManifest {
		data, err := opts.Codec.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode manifest for %q: %w", name, err)
		}
		if err := store.Put(ctx, ManifestName(name), data); err != nil {
			return nil, fmt.Errorf("write manifest for %q: %w", name, err)
		}
	}

	opts.Logger.Debug("snapshot written",
		"name", name,
		"compression", m.Compression,
		"raw_bytes", m.RawBytes,
		"stored_bytes", m.StoredBytes,
		"duration", time.Since(start),
	)
	return m, nil
}

// Read loads the snapshot stored under name.
func Read(ctx context.Context, store blobstore.BlobStore, name string, opts Options) (*csrgo.Store, error) {
	ds, _, err := read(ctx, store, name, opts.withDefaults())
	return ds, err
}

func read(ctx context.Context, store blobstore.BlobStore, name string, opts Options) (*csrgo.Store, *envelope, error) {
	start := time.Now()

	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot %q: %w", name, err)
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, nil, err
	}

	// The checksum covers the decoded bytes, so it is computed while the
	// dataset decoder consumes them. A mismatch outranks any decode error.
	ds := csrgo.New(csrgo.WithLogger(opts.Logger))
	cr := persistence.NewChecksumReader(bytes.NewReader(env.raw))
	loadErr := ds.Load(cr)
	if err := cr.Verify(env.checksum); err != nil {
		ds.Clear()
		return nil, nil, csrgo.NewFormatError("snapshot checksum", err)
	}
	if loadErr != nil {
		return nil, nil, loadErr
	}

	opts.Logger.Debug("snapshot read",
		"name", name,
		"compression", env.compression.String(),
		"rows", ds.NumRows(),
		"duration", time.Since(start),
	)
	return ds, env, nil
}

// Stat returns the manifest of a snapshot. When the manifest blob is missing
// the snapshot itself is decoded to rebuild it.
func Stat(ctx context.Context, store blobstore.BlobStore, name string, opts Options) (*Manifest, error) {
	opts = opts.withDefaults()

	data, err := blobstore.ReadAll(ctx, store, ManifestName(name))
	switch {
	case err == nil:
		var m Manifest
		if err := opts.Codec.Unmarshal(data, &m); err != nil {
			return nil, csrgo.NewFormatError("snapshot manifest", err)
		}
		return &m, nil
	case !errors.Is(err, blobstore.ErrNotFound):
		return nil, fmt.Errorf("read manifest for %q: %w", name, err)
	}

	ds, env, err := read(ctx, store, name, opts)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		Name:        name,
		Version:     env.version,
		Compression: env.compression.String(),
		RawBytes:    uint64(len(env.raw)),
		StoredBytes: env.stored,
		Checksum:    env.checksum,
		Codec:       opts.Codec.Name(),
		Summary:     ds.Summary(),
	}, nil
}

// List returns the names of the snapshots under prefix, without manifests.
func List(ctx context.Context, store blobstore.BlobStore, prefix string) ([]string, error) {
	names, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if !strings.HasSuffix(n, ManifestSuffix) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Delete removes a snapshot and its manifest.
func Delete(ctx context.Context, store blobstore.BlobStore, name string) error {
	if err := store.Delete(ctx, ManifestName(name)); err != nil {
		return err
	}
	return store.Delete(ctx, name)
}

type envelope struct {
	version     uint16
	compression Compression
	checksum    uint32
	stored      uint64
	raw         []byte
}

func decodeEnvelope(data []byte) (*envelope, error) {
	if len(data) < headerSize+trailerSize {
		return nil, csrgo.NewFormatError("snapshot header",
			fmt.Errorf("%w: %d bytes", csrgo.ErrTruncated, len(data)))
	}
	if !bytes.Equal(data[0:4], envelopeMagic[:]) {
		return nil, csrgo.NewFormatError("snapshot header",
			fmt.Errorf("%w: got %q", csrgo.ErrMagicMismatch, data[0:4]))
	}

	env := &envelope{
		version:     binary.LittleEndian.Uint16(data[4:]),
		compression: Compression(data[6]),
		stored:      uint64(len(data)),
	}
	if env.version != Version {
		return nil, csrgo.NewFormatError("snapshot header",
			fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.version))
	}
	if !env.compression.valid() {
		return nil, csrgo.NewFormatError("snapshot header",
			fmt.Errorf("%w: %d", ErrUnknownCompression, data[6]))
	}

	rawLen := binary.LittleEndian.Uint64(data[8:])
	payloadLen := binary.LittleEndian.Uint64(data[16:])
	if rawLen > persistence.MaxSequenceLen {
		return nil, csrgo.NewFormatError("snapshot header",
			fmt.Errorf("%w: raw length %d", persistence.ErrSequenceTooLong, rawLen))
	}

	avail := uint64(len(data) - headerSize - trailerSize)
	switch {
	case payloadLen > avail:
		return nil, csrgo.NewFormatError("snapshot payload",
			fmt.Errorf("%w: payload length %d, %d bytes available", csrgo.ErrTruncated, payloadLen, avail))
	case payloadLen < avail:
		return nil, csrgo.NewFormatError("snapshot payload",
			fmt.Errorf("%w: %d bytes", ErrTrailingData, avail-payloadLen))
	}

	payload := data[headerSize : headerSize+payloadLen]
	env.checksum = binary.LittleEndian.Uint32(data[headerSize+payloadLen:])

	raw, err := decompress(payload, env.compression, rawLen)
	if err != nil {
		return nil, csrgo.NewFormatError("snapshot payload", err)
	}
	env.raw = raw
	return env, nil
}
