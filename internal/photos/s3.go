package photos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	imagePrefix   = "images/"
	deletedPrefix = "deleted/"
)

// S3 stores photos in an S3-compatible bucket. The deleted namespace is a key
// prefix within the same bucket; archiving is copy-then-remove.
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 connects to the endpoint and ensures the bucket exists.
func NewS3(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := client.BucketExists(ctx, bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("make bucket %s: %w", bucket, err)
		}
	}

	return &S3{client: client, bucket: bucket}, nil
}

// Save downscales and uploads one photo.
func (s *S3) Save(ctx context.Context, postID int64, index int, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}
	if resized, err := downscale(data); err == nil {
		data = resized
	}

	key := imagePrefix + photoFilename(postID, index)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return fmt.Errorf("put photo %s: %w", key, err)
	}
	return nil
}

// Archive copies a posting's photos under the deleted prefix and removes the
// originals. Missing objects and external-URL tags are skipped.
func (s *S3) Archive(ctx context.Context, postID int64, tags []string) error {
	var firstErr error
	for _, tag := range tags {
		if strings.Contains(tag, "http") {
			continue
		}
		name := fmt.Sprintf("%d%s.jpg", postID, tag)
		src := imagePrefix + name

		if _, err := s.client.StatObject(ctx, s.bucket, src, minio.StatObjectOptions{}); err != nil {
			continue
		}

		_, err := s.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: s.bucket, Object: deletedPrefix + name},
			minio.CopySrcOptions{Bucket: s.bucket, Object: src},
		)
		if err == nil {
			err = s.client.RemoveObject(ctx, s.bucket, src, minio.RemoveObjectOptions{})
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("move photo %s: %w", name, err)
		}
	}
	return firstErr
}
