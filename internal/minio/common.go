// internal/minio/common.go

package minio

import (
	"context"
	"io"
	"time"
)

// Config for the MinIO client.
type Config struct {
	Endpoint        string // host:port, no scheme
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string // defaults to us-east-1
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// ObjectStore is the part of the client the template store and the
// encounter archive rely on.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, object string, data io.Reader, size int64) error
	GetObject(ctx context.Context, bucket, object string) ([]byte, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
