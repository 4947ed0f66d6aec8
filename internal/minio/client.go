// internal/minio/client.go
//
// Client backed by github.com/minio/minio-go/v7.

package minio

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ ObjectStore = (*Client)(nil)

// Client talks to one MinIO endpoint.
type Client struct {
	client *minio.Client
	config Config

	mu      sync.Mutex
	buckets map[string]bool
}

// NewClient builds a client. No request is made until first use.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &Client{
		client:  client,
		config:  cfg,
		buckets: make(map[string]bool),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist. Known buckets are
// remembered for the life of the client.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	c.mu.Lock()
	known := c.buckets[bucket]
	c.mu.Unlock()
	if known {
		return nil
	}

	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		err = c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
			Region: c.config.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	c.mu.Lock()
	c.buckets[bucket] = true
	c.mu.Unlock()
	return nil
}

// PutObject uploads an object, creating the bucket on demand.
func (c *Client) PutObject(ctx context.Context, bucket, object string, data io.Reader, size int64) error {
	if err := c.EnsureBucket(ctx, bucket); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := c.client.PutObject(ctx, bucket, object, data, size, minio.PutObjectOptions{
		ContentType: contentType(object),
	})
	if err != nil {
		return fmt.Errorf("put object failed: %w", err)
	}
	return nil
}

// GetObject downloads an object.
func (c *Client) GetObject(ctx context.Context, bucket, object string) ([]byte, error) {
	reader, err := c.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object failed: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}
	return data, nil
}

// ListObjects lists objects under prefix, newest first.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if err := c.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var objects []ObjectInfo
	for object := range c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects failed: %w", object.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			LastModified: object.LastModified,
			Size:         object.Size,
		})
	}
	sortNewestFirst(objects)
	return objects, nil
}

// PresignedGetObject returns a signed download link.
func (c *Client) PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration) (string, error) {
	u, err := c.client.PresignedGetObject(ctx, bucket, object, expires, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

func sortNewestFirst(objects []ObjectInfo) {
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
}

func contentType(object string) string {
	switch {
	case strings.HasSuffix(object, ".json"):
		return "application/json"
	case strings.HasSuffix(object, ".yaml"), strings.HasSuffix(object, ".yml"):
		return "application/yaml"
	}
	return "application/octet-stream"
}
