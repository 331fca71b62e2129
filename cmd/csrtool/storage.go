package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/csrgo/blobstore"
	"github.com/hupe1980/csrgo/blobstore/minio"
	"github.com/hupe1980/csrgo/blobstore/s3"
)

// location is a parsed storage URI.
type location struct {
	scheme string
	host   string
	bucket string
	prefix string
	secure bool
	path   string
}

func parseLocation(uri string) (location, error) {
	if !strings.Contains(uri, "://") {
		if uri == "" {
			uri = "."
		}
		return location{scheme: "file", path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return location{}, fmt.Errorf("invalid location %q: %w", uri, err)
	}
	rest := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case "file":
		return location{scheme: "file", path: u.Host + u.Path}, nil
	case "s3":
		if u.Host == "" {
			return location{}, fmt.Errorf("invalid location %q: missing bucket", uri)
		}
		return location{scheme: "s3", bucket: u.Host, prefix: rest}, nil
	case "minio":
		bucket, prefix, _ := strings.Cut(rest, "/")
		if u.Host == "" || bucket == "" {
			return location{}, fmt.Errorf("invalid location %q: want minio://host/bucket[/prefix]", uri)
		}
		loc := location{scheme: "minio", host: u.Host, bucket: bucket, prefix: prefix}
		if v := u.Query().Get("secure"); v != "" {
			if loc.secure, err = strconv.ParseBool(v); err != nil {
				return location{}, fmt.Errorf("invalid location %q: secure=%q", uri, v)
			}
		}
		return loc, nil
	default:
		return location{}, fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
}

func openStore(ctx context.Context, uri string) (blobstore.BlobStore, error) {
	loc, err := parseLocation(uri)
	if err != nil {
		return nil, err
	}

	switch loc.scheme {
	case "s3":
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3.NewStore(awss3.NewFromConfig(cfg), loc.bucket, loc.prefix), nil
	case "minio":
		return minio.Dial(minio.Config{
			Endpoint: loc.host,
			Bucket:   loc.bucket,
			Prefix:   loc.prefix,
			Secure:   loc.secure,
		})
	default:
		return blobstore.NewLocalStore(loc.path), nil
	}
}
