package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/weatherweaver/weatherweaver/internal/dataset"
)

func newTestBlobStore(t *testing.T) (*BlobStore, string) {
	t.Helper()
	tmpDir := t.TempDir()
	store, err := NewBlobStore(context.Background(), "file://"+tmpDir, "", dataset.DefaultParquetConfig())
	if err != nil {
		t.Fatalf("NewBlobStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, tmpDir
}

func TestBlobStoreStoreAndExists(t *testing.T) {
	store, _ := newTestBlobStore(t)
	ctx := context.Background()
	path := "ecmwf-hres/20220101_00z.parquet"

	checksum, err := store.Store(ctx, testDataset(), path)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if checksum == "" {
		t.Error("Store should return a checksum")
	}

	exists, err := store.Exists(ctx, path)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("artifact should exist after Store")
	}
}

func TestBlobStoreIsValidThresholdIsStrict(t *testing.T) {
	store, tmpDir := newTestBlobStore(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(tmpDir, "exact.bin"), make([]byte, 1000), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if store.IsValid(ctx, "exact.bin", 1000) {
		t.Error("object at exactly the threshold should not be valid")
	}
	if !store.IsValid(ctx, "exact.bin", 999) {
		t.Error("object one byte over the threshold should be valid")
	}
	if store.IsValid(ctx, "missing.bin", 1) {
		t.Error("missing object should not be valid")
	}
}

func TestBlobStoreDelete(t *testing.T) {
	store, _ := newTestBlobStore(t)
	ctx := context.Background()
	path := "ecmwf-hres/20220101_00z.parquet"

	if err := store.Delete(ctx, path); !errors.Is(err, ErrNotExist) {
		t.Errorf("deleting a missing object should return ErrNotExist, got %v", err)
	}

	if _, err := store.Store(ctx, testDataset(), path); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := store.Delete(ctx, path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := store.Exists(ctx, path)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("object should be gone after Delete")
	}
}
