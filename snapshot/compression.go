package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the payload compression of a snapshot.
type Compression uint8

const (
	// CompressionNone stores the dataset encoding as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (better ratio).
	CompressionZSTD Compression = 2
)

// ErrUnknownCompression is returned for compression codes this package does not know.
var ErrUnknownCompression = errors.New("unknown compression")

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

func (c Compression) valid() bool {
	return c <= CompressionZSTD
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "zst":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// maxZstdDecoded caps the memory a zstd decoder may use for one payload.
const maxZstdDecoded = 16 << 30

// lz4MaxRatio bounds how far an LZ4 block can expand: every input byte
// yields at most 255 output bytes, plus a short literal tail.
const lz4MaxRatio = 255

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxZstdDecoded),
	)
}

func errRawLength(rawLen uint64, payload int) error {
	return fmt.Errorf("raw length %d cannot come from a %d byte payload", rawLen, payload)
}

// compress returns the payload for raw and the compression actually used.
// Data that does not shrink below 90% of its size is stored uncompressed.
func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionNone || len(raw) == 0 {
		return raw, CompressionNone, nil
	}

	var out []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, 0, err
		}
		out = buf[:n]
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, 0, err
		}
		out = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}

	if len(out) == 0 || float64(len(out)) > float64(len(raw))*0.9 {
		return raw, CompressionNone, nil
	}
	return out, c, nil
}

func decompress(payload []byte, c Compression, rawLen uint64) ([]byte, error) {
	switch c {
	case CompressionNone:
		if uint64(len(payload)) != rawLen {
			return nil, fmt.Errorf("stored payload is %d bytes, want %d", len(payload), rawLen)
		}
		return payload, nil
	case CompressionLZ4:
		// Checked before allocating: rawLen comes from an untrusted header.
		if rawLen > uint64(len(payload))*lz4MaxRatio+16 {
			return nil, errRawLength(rawLen, len(payload))
		}
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, err
		}
		if uint64(n) != rawLen {
			return nil, fmt.Errorf("decompressed %d bytes, want %d", n, rawLen)
		}
		return raw, nil
	case CompressionZSTD:
		if rawLen > maxZstdDecoded {
			return nil, errRawLength(rawLen, len(payload))
		}
		var h zstd.Header
		if err := h.Decode(payload); err != nil {
			return nil, err
		}
		if h.HasFCS && h.FrameContentSize != rawLen {
			return nil, fmt.Errorf("zstd frame holds %d bytes, want %d", h.FrameContentSize, rawLen)
		}

		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)

		// The destination grows with the decoded data instead of trusting rawLen.
		raw, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, err
		}
		if uint64(len(raw)) != rawLen {
			return nil, fmt.Errorf("decompressed %d bytes, want %d", len(raw), rawLen)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}
