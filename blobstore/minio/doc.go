// Package minio provides a blobstore.BlobStore backed by the MinIO client.
//
// It works with MinIO and other S3-compatible systems such as Ceph,
// SeaweedFS and Garage, without pulling in the AWS SDK.
//
//	store, err := minio.Dial(minio.Config{
//	    Endpoint: "localhost:9000",
//	    Bucket:   "datasets",
//	    Prefix:   "train/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = snapshot.Write(ctx, store, "part-00000.csr", ds, snapshot.Options{})
//
// Dial falls back to the MINIO_ACCESS_KEY/MINIO_SECRET_KEY and
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY environment variables when no
// static keys are configured.
package minio
