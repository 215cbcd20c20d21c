package models

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3Scheme = "s3://"

// ArtifactStore opens model artifacts by locator.
type ArtifactStore interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}

// S3Client abstracts S3 object retrieval for testability.
type S3Client interface {
	// GetObject fetches an object from S3 by bucket and key.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// FileStore resolves relative locators against Dir.
type FileStore struct {
	Dir string
}

// Open implements ArtifactStore.
func (s FileStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	path := locator
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.Dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact %s: %w", path, err)
	}
	return f, nil
}

// S3Store reads s3://bucket/key locators.
type S3Store struct {
	Client S3Client
}

// Open implements ArtifactStore.
func (s S3Store) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3Locator(locator)
	if err != nil {
		return nil, err
	}
	body, err := s.Client.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", bucket, key, err)
	}
	return body, nil
}

// ParseS3Locator splits s3://bucket/key.
func ParseS3Locator(locator string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(locator, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 locator: %q", locator)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 locator %q, want s3://bucket/key", locator)
	}
	return bucket, key, nil
}

// RoutingStore sends s3:// locators to S3 and everything else to Files.
// S3 may be nil when no stadium uses remote artifacts.
type RoutingStore struct {
	Files FileStore
	S3    ArtifactStore
}

// Open implements ArtifactStore.
func (s RoutingStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if strings.HasPrefix(locator, s3Scheme) {
		if s.S3 == nil {
			return nil, fmt.Errorf("no S3 client configured for %s", locator)
		}
		return s.S3.Open(ctx, locator)
	}
	return s.Files.Open(ctx, locator)
}

// NeedsS3 reports whether any locator points at S3.
func NeedsS3(locators []string) bool {
	for _, l := range locators {
		if strings.HasPrefix(l, s3Scheme) {
			return true
		}
	}
	return false
}

// awsS3Client adapts the AWS SDK client to S3Client.
type awsS3Client struct {
	api *s3.Client
}

// NewAWSS3Client wraps an SDK client.
func NewAWSS3Client(api *s3.Client) S3Client {
	return &awsS3Client{api: api}
}

func (c *awsS3Client) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}
