// Package hash provides CRC32-Castagnoli (CRC32C) checksums.
//
// CRC32C is the checksum S3 accepts for upload integrity checks, so object
// store backends compute it with this package. Go's hash/crc32 uses SSE4.2 or
// the ARM CRC extension for this polynomial when available.
//
//	sum := hash.CRC32C(data)
//	header := hash.CRC32CBase64(data)
package hash
