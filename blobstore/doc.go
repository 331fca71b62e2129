// Package blobstore provides storage backends for serialized datasets.
//
// BlobStore is the interface for reading and writing named blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap reads
//   - MemoryStore: In-process map, used by tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// For cloud backends, ReadRange issues a single ranged GET so that a reader
// can stream a dataset without buffering it twice.
package blobstore
