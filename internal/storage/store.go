// Package storage persists processed forecast artifacts. Backends share one
// contract: content-addressed parquet files written atomically, with an
// existence-and-size validity check the pipeline uses to skip work already
// done.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/weatherweaver/weatherweaver/internal/dataset"
)

// ErrNotExist is returned by Delete when the artifact is absent.
var ErrNotExist = errors.New("artifact does not exist")

// Config configures the artifact storage backend.
type Config struct {
	Backend string // "local" | "blob"

	// Local filesystem
	Root string // base directory for the local backend

	// Blob storage, any gocloud.dev URL: s3://, gs://, file://
	BucketURL string

	// Common
	Prefix string // key prefix within the bucket or root

	// Parquet encoding for stored artifacts.
	Parquet dataset.ParquetConfig
}

// ArtifactStore abstracts writing processed datasets to storage.
type ArtifactStore interface {
	// IsValid reports whether an artifact at path exists and holds more than
	// minBytes of data. Lookup errors count as invalid: the pipeline then
	// rebuilds the artifact, which is safe because writes are idempotent.
	IsValid(ctx context.Context, path string, minBytes int64) bool

	// Exists reports whether any artifact exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Store encodes the dataset as parquet and writes it to path,
	// overwriting any previous artifact. Returns the content checksum.
	Store(ctx context.Context, ds *dataset.Dataset, path string) (string, error)

	// Delete removes the artifact at path. Deleting a missing artifact
	// returns ErrNotExist.
	Delete(ctx context.Context, path string) error

	// URI returns the canonical URI for the given key.
	// For local: file:///path, blob: the bucket URL joined with the key.
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// NewArtifactStore creates a storage backend based on configuration.
func NewArtifactStore(ctx context.Context, cfg Config) (ArtifactStore, error) {
	switch cfg.Backend {
	case "local":
		if cfg.Root == "" {
			return nil, fmt.Errorf("root directory required for local backend")
		}
		return NewLocalStore(cfg.Root, cfg.Prefix, cfg.Parquet)
	case "blob":
		if cfg.BucketURL == "" {
			return nil, fmt.Errorf("bucket URL required for blob backend")
		}
		return NewBlobStore(ctx, cfg.BucketURL, cfg.Prefix, cfg.Parquet)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
