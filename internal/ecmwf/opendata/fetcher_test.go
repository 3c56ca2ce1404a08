package opendata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepRequest() Request {
	return Request{
		Date:       time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		RunHour:    0,
		Stream:     StreamOper,
		Type:       TypeForecast,
		Parameters: []string{"2t"},
		Steps:      []int{0, 3},
	}
}

func TestDownloadRawFile(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("GRIB" + r.URL.Path))
	}))
	defer srv.Close()

	rawRoot := t.TempDir()
	f := NewFetcher(FetcherConfig{Endpoint: srv.URL, RawRoot: rawRoot})

	path, ok := f.DownloadRawFile(context.Background(), stepRequest())
	require.True(t, ok)
	assert.Equal(t, filepath.Join(rawRoot, "oper/20220101_00z_0-3_fc.grib2"), path)
	assert.Equal(t, int32(2), hits.Load(), "one request per step")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "GRIB"), "step payloads concatenated")
}

func TestDownloadRawFileSkipsValidCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	rawRoot := t.TempDir()
	cached := filepath.Join(rawRoot, "oper/20220101_00z_0-3_fc.grib2")
	require.NoError(t, os.MkdirAll(filepath.Dir(cached), 0755))
	require.NoError(t, os.WriteFile(cached, make([]byte, 2048), 0644))

	f := NewFetcher(FetcherConfig{Endpoint: srv.URL, RawRoot: rawRoot, MinBytes: 1024})

	path, ok := f.DownloadRawFile(context.Background(), stepRequest())
	require.True(t, ok)
	assert.Equal(t, cached, path)
	assert.Zero(t, hits.Load(), "valid cache entry must not touch the network")
}

func TestDownloadRawFileRedownloadsSmallCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("GRIBDATA"))
	}))
	defer srv.Close()

	rawRoot := t.TempDir()
	cached := filepath.Join(rawRoot, "oper/20220101_00z_0-3_fc.grib2")
	require.NoError(t, os.MkdirAll(filepath.Dir(cached), 0755))
	require.NoError(t, os.WriteFile(cached, []byte("x"), 0644))

	f := NewFetcher(FetcherConfig{Endpoint: srv.URL, RawRoot: rawRoot, MinBytes: 1024})

	_, ok := f.DownloadRawFile(context.Background(), stepRequest())
	require.True(t, ok)

	data, err := os.ReadFile(cached)
	require.NoError(t, err)
	assert.Greater(t, len(data), 1, "undersized cache entry replaced")
}

func TestDownloadRawFileFailureRemovesPartial(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) > 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("GRIBDATA"))
	}))
	defer srv.Close()

	rawRoot := t.TempDir()
	f := NewFetcher(FetcherConfig{Endpoint: srv.URL, RawRoot: rawRoot})

	path, ok := f.DownloadRawFile(context.Background(), stepRequest())
	assert.False(t, ok)
	assert.Empty(t, path)

	// Neither the final file nor a temp sibling survives the failure.
	entries, err := os.ReadDir(filepath.Join(rawRoot, "oper"))
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestDownloadRawFileCompressed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("GRIBDATA"))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{Endpoint: srv.URL, RawRoot: t.TempDir(), Compress: true})

	path, ok := f.DownloadRawFile(context.Background(), stepRequest())
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(path, ".grib2.zst"))
}

func TestDownloadRawFileRejectsForeignRequest(t *testing.T) {
	f := NewFetcher(FetcherConfig{RawRoot: t.TempDir()})

	_, ok := f.DownloadRawFile(context.Background(), foreignRequest{})
	assert.False(t, ok)
}

type foreignRequest struct{}

func (foreignRequest) Identity() string   { return "foreign" }
func (foreignRequest) RunDate() time.Time { return time.Time{} }
func (foreignRequest) Source() string     { return "foreign" }
func (foreignRequest) String() string     { return "foreign" }

func TestListRawFiles(t *testing.T) {
	f := NewFetcher(FetcherConfig{Endpoint: "https://data.example.com"})
	urls := f.ListRawFiles(stepRequest())
	assert.Len(t, urls, 2)
}
