package s3

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/csrgo/internal/hash"
)

// UploadConfig configures the S3 uploader.
type UploadConfig struct {
	// PartSize is the minimum part size for multipart uploads.
	// Default: 8MB
	PartSize int64

	// Concurrency is the number of concurrent part uploads.
	// Default: 5
	Concurrency int

	// EnableChecksum enables CRC32C integrity validation.
	// Default: true
	EnableChecksum bool

	// LeavePartsOnError keeps uploaded parts when a multipart upload fails.
	// Default: false
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:          8 * 1024 * 1024,
		Concurrency:       5,
		EnableChecksum:    true,
		LeavePartsOnError: false,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// streamingWritableBlob pipes writes into a background upload.
type streamingWritableBlob struct {
	pw *io.PipeWriter

	done     chan error
	closed   atomic.Bool
	closeErr error
	closeMu  sync.Mutex
}

func newStreamingWritableBlob(
	ctx context.Context,
	uploader *manager.Uploader,
	bucket, key string,
	enableChecksum bool,
) *streamingWritableBlob {
	pr, pw := io.Pipe()

	blob := &streamingWritableBlob{
		pw:   pw,
		done: make(chan error, 1),
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if enableChecksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	go func() {
		_, err := uploader.Upload(ctx, input)
		_ = pr.CloseWithError(err)
		blob.done <- err
	}()

	return blob
}

func (b *streamingWritableBlob) Write(p []byte) (int, error) {
	if b.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return b.pw.Write(p)
}

// Close finishes the upload and returns its result.
func (b *streamingWritableBlob) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if !b.closed.CompareAndSwap(false, true) {
		return b.closeErr
	}
	if err := b.pw.Close(); err != nil {
		b.closeErr = err
		return err
	}
	b.closeErr = <-b.done
	return b.closeErr
}

// Abort cancels the upload. The upload manager cleans up uploaded parts
// unless LeavePartsOnError is set.
func (b *streamingWritableBlob) Abort() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()

	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = b.pw.CloseWithError(context.Canceled)
	<-b.done
	b.closeErr = context.Canceled
	return nil
}

// Sync is a no-op; data is committed on Close.
func (b *streamingWritableBlob) Sync() error {
	return nil
}

func putWithChecksum(ctx context.Context, client Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ChecksumCRC32C: aws.String(hash.CRC32CBase64(data)),
	})
	return err
}

func putPlain(ctx context.Context, client Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}
