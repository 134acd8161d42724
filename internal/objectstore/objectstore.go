// Package objectstore abstracts the blob store holding staged uploads,
// content-addressed source bytes, and signed verification manifests.
//
// Keys are opaque hierarchical strings derived by the storage-mapping layer
// of the owning context; this package never interprets them. Missing objects
// surface as sentinel.ErrNotFound so services can translate uniformly.
package objectstore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored object without its body.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// PresignedURL grants time-limited access to one object for one HTTP method.
type PresignedURL struct {
	URL     string
	Method  string
	Expires time.Time
}

// Store is the object store contract.
//
// Get returns a streaming reader so verification can hash large objects
// without buffering them in memory; callers own closing the reader.
type Store interface {
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (PresignedURL, error)
	PresignGet(ctx context.Context, key, filename string, expiry time.Duration) (PresignedURL, error)
}
