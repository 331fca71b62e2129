// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil { ... }
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "datasets/")
//
//	err = snapshot.Write(ctx, store, "train.csr", ds, snapshot.Options{})
//
// # Features
//
//   - Range reads for streaming decodes
//   - Multipart uploads through the SDK upload manager
//   - CRC32C integrity checks on Put
//   - Automatic pagination for listing
package s3
