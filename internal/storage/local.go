package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/weatherweaver/weatherweaver/internal/dataset"
)

// LocalStore writes parquet artifacts to the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
	parquet dataset.ParquetConfig
}

// NewLocalStore creates a new local filesystem store rooted at baseDir.
func NewLocalStore(baseDir, prefix string, parquet dataset.ParquetConfig) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}

	return &LocalStore{
		baseDir: baseDir,
		prefix:  prefix,
		parquet: parquet,
	}, nil
}

func (s *LocalStore) fullPath(key string) string {
	return filepath.Join(s.baseDir, s.prefix, key)
}

// IsValid reports whether the artifact at path exists and holds more than
// minBytes. A directory path is valid when the files under it sum to more
// than minBytes.
func (s *LocalStore) IsValid(ctx context.Context, path string, minBytes int64) bool {
	full := s.fullPath(path)

	info, err := os.Stat(full)
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return info.Size() > minBytes
	}

	var total int64
	err = filepath.WalkDir(full, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return err == nil && total > minBytes
}

// Exists checks if an artifact already exists at path.
func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(s.fullPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Store writes the dataset as a parquet file at path, atomically via temp
// file + rename, and returns the content checksum.
func (s *LocalStore) Store(ctx context.Context, ds *dataset.Dataset, path string) (string, error) {
	data, err := ds.ToParquet(s.parquet)
	if err != nil {
		return "", fmt.Errorf("encode dataset: %w", err)
	}

	full := s.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", filepath.Dir(full), err)
	}

	tempPath := full + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return "", fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, full); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename %s to %s: %w", tempPath, full, err)
	}

	return dataset.ComputeChecksum(data), nil
}

// Delete removes the artifact at path.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	full := s.fullPath(path)
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, ErrNotExist)
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("delete %s: %w", full, err)
	}
	return nil
}

// URI returns the canonical URI for the given key.
func (s *LocalStore) URI(key string) string {
	return "file://" + s.fullPath(key)
}

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}
