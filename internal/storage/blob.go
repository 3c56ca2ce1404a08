package storage

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
	"gocloud.dev/gcerrors"

	"github.com/weatherweaver/weatherweaver/internal/dataset"
)

// BlobStore writes parquet artifacts to object storage via gocloud.dev.
// Works with S3-compatible services, GCS and the file:// driver.
type BlobStore struct {
	bucket    *blob.Bucket
	bucketURL string
	prefix    string
	parquet   dataset.ParquetConfig
}

// NewBlobStore opens the bucket named by a gocloud.dev URL.
func NewBlobStore(ctx context.Context, bucketURL, prefix string, parquet dataset.ParquetConfig) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}

	return &BlobStore{
		bucket:    bucket,
		bucketURL: strings.TrimRight(bucketURL, "/"),
		prefix:    prefix,
		parquet:   parquet,
	}, nil
}

func (s *BlobStore) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return strings.TrimRight(s.prefix, "/") + "/" + path
}

// IsValid reports whether the object at path exists with more than minBytes.
func (s *BlobStore) IsValid(ctx context.Context, path string, minBytes int64) bool {
	attrs, err := s.bucket.Attributes(ctx, s.key(path))
	if err != nil {
		return false
	}
	return attrs.Size > minBytes
}

// Exists checks if an object already exists at path.
func (s *BlobStore) Exists(ctx context.Context, path string) (bool, error) {
	return s.bucket.Exists(ctx, s.key(path))
}

// Store encodes the dataset and writes it to path. Object stores publish a
// write only on a successful Close, so a failed upload leaves no partial
// object behind.
func (s *BlobStore) Store(ctx context.Context, ds *dataset.Dataset, path string) (string, error) {
	data, err := ds.ToParquet(s.parquet)
	if err != nil {
		return "", fmt.Errorf("encode dataset: %w", err)
	}

	key := s.key(path)
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return "", fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write data to %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", key, err)
	}

	return dataset.ComputeChecksum(data), nil
}

// Delete removes the object at path.
func (s *BlobStore) Delete(ctx context.Context, path string) error {
	err := s.bucket.Delete(ctx, s.key(path))
	if err == nil {
		return nil
	}
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%s: %w", path, ErrNotExist)
	}
	return fmt.Errorf("delete %s: %w", path, err)
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	return s.bucketURL + "/" + s.key(key)
}

// Close releases the bucket handle.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
