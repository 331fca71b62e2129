package s3

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/csrgo/blobstore"
)

// Store implements blobstore.BlobStore for S3.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	cfg      UploadConfig
	uploader *manager.Uploader
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore creates a new S3 blob store.
// rootPrefix is prepended to all keys (e.g. "datasets/").
func NewStore(client Client, bucket, rootPrefix string, optFns ...func(*UploadConfig)) *Store {
	cfg := DefaultUploadConfig()
	for _, fn := range optFns {
		fn(&cfg)
	}
	if rootPrefix != "" && !strings.HasSuffix(rootPrefix, "/") {
		rootPrefix += "/"
	}
	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   rootPrefix,
		cfg:      cfg,
		uploader: newUploader(client, cfg),
	}
}

func (s *Store) key(name string) string {
	return s.prefix + strings.TrimPrefix(name, "/")
}

// Open opens an existing blob for reading.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return openBlob(ctx, s.client, s.bucket, s.key(name))
}

// Create starts a streaming multipart upload. The object appears on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return newStreamingWritableBlob(ctx, s.uploader, s.bucket, s.key(name), s.cfg.EnableChecksum), nil
}

// Put writes a small blob in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if s.cfg.EnableChecksum {
		return putWithChecksum(ctx, s.client, s.bucket, s.key(name), data)
	}
	return putPlain(ctx, s.client, s.bucket, s.key(name), data)
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// List returns all blob names with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}
