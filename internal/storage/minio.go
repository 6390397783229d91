package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore publishes rendered videos to an S3-compatible bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
	// publicBase overrides the URL prefix when the bucket is served
	// through a CDN; empty means the endpoint URL is used directly.
	publicBase string
}

// NewObjectStore connects to the object storage service and ensures the
// bucket exists.
func NewObjectStore(ctx context.Context, endpoint, accessKey, secretKey, bucket, publicBase string, useSSL bool) (*ObjectStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: initialize object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}

	return &ObjectStore{client: client, bucket: bucket, publicBase: publicBase}, nil
}

// Publish uploads the rendered file and returns its public URL and size.
func (s *ObjectStore) Publish(ctx context.Context, key, localPath string) (string, int64, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", 0, err
	}

	info, err := s.client.FPutObject(ctx, s.bucket, cleanKey, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(cleanKey),
	})
	if err != nil {
		return "", 0, fmt.Errorf("storage: upload object: %w", err)
	}

	base := s.publicBase
	if base == "" {
		base = s.client.EndpointURL().String() + "/" + s.bucket
	}
	return base + "/" + cleanKey, info.Size, nil
}

func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
