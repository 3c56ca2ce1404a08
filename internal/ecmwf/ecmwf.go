// Package ecmwf holds contracts and helpers shared by the ECMWF providers:
// the open-data forecast feed and the CDS reanalysis archive.
package ecmwf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// NWPParameters are the surface-level parameters fetched by default,
// limited to what the open-data catalogue publishes.
var NWPParameters = []string{"2t", "tp", "10u", "10v"}

// RunTimes are the model run hours published per day.
var RunTimes = []int{0, 6, 12, 18}

// ForecastSteps returns the default lead times: hourly steps 0..90 at a
// 3 hour interval.
func ForecastSteps() []int {
	steps := make([]int, 31)
	for i := range steps {
		steps[i] = 3 * i
	}
	return steps
}

// RawFileValid reports whether a cached raw file exists with more than
// minBytes of content. An invalid cache entry is re-downloaded.
func RawFileValid(path string, minBytes int64) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > minBytes
}

// FetchURL issues a GET and streams the body into w.
func FetchURL(ctx context.Context, client *http.Client, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("GET %s: read body: %w", url, err)
	}
	return nil
}

// RawWriter writes a raw cache file atomically: content goes to a temp
// sibling, optionally through zstd, and is renamed into place on Commit.
// Abort removes the temp file so a failed download leaves nothing behind.
type RawWriter struct {
	dest     string
	tempPath string
	file     *os.File
	zw       *zstd.Encoder
}

// NewRawWriter opens a temp file next to dest. With compress set, the
// payload is zstd-framed and dest gains a ".zst" suffix.
func NewRawWriter(dest string, compress bool) (*RawWriter, error) {
	if compress {
		dest += ".zst"
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", filepath.Dir(dest), err)
	}

	tempPath := dest + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("create temp file %s: %w", tempPath, err)
	}

	w := &RawWriter{dest: dest, tempPath: tempPath, file: f}
	if compress {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			os.Remove(tempPath)
			return nil, fmt.Errorf("open zstd writer: %w", err)
		}
		w.zw = zw
	}
	return w, nil
}

// Write implements io.Writer.
func (w *RawWriter) Write(p []byte) (int, error) {
	if w.zw != nil {
		return w.zw.Write(p)
	}
	return w.file.Write(p)
}

// Commit flushes and renames the temp file to its final path.
func (w *RawWriter) Commit() (string, error) {
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			w.Abort()
			return "", fmt.Errorf("close zstd writer: %w", err)
		}
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tempPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(w.tempPath, w.dest); err != nil {
		os.Remove(w.tempPath)
		return "", fmt.Errorf("rename %s to %s: %w", w.tempPath, w.dest, err)
	}
	return w.dest, nil
}

// Abort discards the temp file.
func (w *RawWriter) Abort() {
	if w.zw != nil {
		w.zw.Close()
	}
	w.file.Close()
	os.Remove(w.tempPath)
}
