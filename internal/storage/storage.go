// Package storage keeps uploaded document content out of the wizard state.
// Files are validated against an upload policy and written to a BlobStore;
// the state only records the object key.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes one stored object in a listing.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// BlobStore is the binary content store. List walks every object under
// prefix.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}
