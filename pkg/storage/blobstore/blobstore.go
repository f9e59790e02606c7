package blobstore

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/filely/filely/pkg/config"
	"github.com/filely/filely/pkg/storage/blobstore/gcs"
	"github.com/filely/filely/pkg/storage/blobstore/memory"
	"github.com/filely/filely/pkg/storage/blobstore/s3"
)

type BlobStore interface {
	// Upload writes the blob under key. Keys are derived from freshly
	// issued share IDs, so the same key is never written twice.
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error

	// Delete removes the given blobs in bulk. A missing key is not an
	// error; the reclaimer retries failed passes and must be idempotent.
	Delete(ctx context.Context, keys []string) error

	// SignedURL returns a direct-access URL for the blob that stops
	// working after ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func NewBlobStore(conf config.BlobStore) (BlobStore, error) {
	switch conf.Type {
	case "memory":
		return memory.NewStorage(), nil
	case "s3":
		return s3.NewStorage(conf.Settings)
	case "gcs":
		return gcs.NewStorage(conf.Settings)
	}

	return nil, errors.New("unsupported blob store: " + conf.Type)
}
