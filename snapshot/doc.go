// Package snapshot stores CSR datasets in a blobstore.BlobStore.
//
// A snapshot blob wraps the binary dataset encoding in a small envelope:
//
//	"CSRS" | version uint16 | compression uint8 | reserved uint8 |
//	rawLen uint64 | payloadLen uint64 | payload | crc32(raw) uint32
//
// All integers are little-endian. The payload is the dataset encoding,
// optionally compressed with LZ4 or zstd; the checksum covers the
// uncompressed bytes. Next to each snapshot a "<name>.manifest.json" blob
// records the envelope parameters and the dataset summary so that Stat does
// not have to download the data.
package snapshot
