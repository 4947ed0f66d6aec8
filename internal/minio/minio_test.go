package minio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRejectsBadEndpoint(t *testing.T) {
	_, err := NewClient(Config{Endpoint: ""})
	assert.Error(t, err)
}

func TestNewClientDefaultsRegion(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "127.0.0.1:9000"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", c.config.Region)
}

func TestSortNewestFirst(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	objs := []ObjectInfo{
		{Key: "a", LastModified: t0},
		{Key: "c", LastModified: t0.Add(2 * time.Hour)},
		{Key: "b", LastModified: t0.Add(time.Hour)},
	}
	sortNewestFirst(objs)
	assert.Equal(t, "c", objs[0].Key)
	assert.Equal(t, "b", objs[1].Key)
	assert.Equal(t, "a", objs[2].Key)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("encounters/alpha/x.json"))
	assert.Equal(t, "application/yaml", contentType("templates/alpha.yaml"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}

// TestMinioConnection runs against a live server when MINIO_ENDPOINT is set.
func TestMinioConnection(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping test: MINIO_ENDPOINT not set")
	}
	client, err := NewClient(Config{
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("MINIO_ACCESS_KEY"),
		SecretAccessKey: os.Getenv("MINIO_SECRET_KEY"),
	})
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("test file content for get")
	key := fmt.Sprintf("test-get-object-%d", time.Now().UnixNano())
	require.NoError(t, client.PutObject(ctx, "test-bucket", key, bytes.NewReader(data), int64(len(data))))

	got, err := client.GetObject(ctx, "test-bucket", key)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	objects, err := client.ListObjects(ctx, "test-bucket", "test-get-object")
	require.NoError(t, err)
	assert.NotEmpty(t, objects)

	_, err = client.GetObject(ctx, "test-bucket", "non-existent-object")
	assert.Error(t, err)
}
