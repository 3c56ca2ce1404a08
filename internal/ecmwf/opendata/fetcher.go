package opendata

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/weatherweaver/weatherweaver/internal/ecmwf"
	"github.com/weatherweaver/weatherweaver/internal/logging"
	"github.com/weatherweaver/weatherweaver/internal/request"
)

// DefaultEndpoint is the public open-data mirror.
const DefaultEndpoint = "https://data.ecmwf.int/forecasts"

// FetcherConfig configures the open-data fetcher.
type FetcherConfig struct {
	Endpoint string
	RawRoot  string // directory for the raw grib cache
	MinBytes int64  // cached file smaller than this is re-downloaded
	Compress bool   // zstd-compress cached files
	Client   *http.Client
}

// Fetcher downloads raw grib2 files from the open-data feed. A request's
// step files are concatenated into one cache file; grib messages are
// self-delimiting so the concatenation stays decodable.
type Fetcher struct {
	cfg FetcherConfig
	log *slog.Logger
}

// NewFetcher creates a Fetcher, filling in endpoint and client defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Fetcher{cfg: cfg, log: logging.Component("opendata-fetcher")}
}

// ListRawFiles enumerates the per-step URLs the request resolves to.
func (f *Fetcher) ListRawFiles(req Request) []string {
	return req.StepURLs(f.cfg.Endpoint)
}

// DownloadRawFile fetches the request's raw file into the cache. A valid
// cached file is reused without touching the network. Any failure is
// logged, the partial file removed, and ok=false returned; the caller
// drops the request and moves on.
func (f *Fetcher) DownloadRawFile(ctx context.Context, r request.Request) (string, bool) {
	req, ok := r.(Request)
	if !ok {
		f.log.Error("unsupported request type", "request", r.String())
		return "", false
	}

	dest := filepath.Join(f.cfg.RawRoot, req.Identity()+".grib2")
	if f.cfg.Compress {
		dest += ".zst"
	}
	if ecmwf.RawFileValid(dest, f.cfg.MinBytes) {
		f.log.Debug("download skipped, raw file cached",
			"request", req.Identity(), "path", dest)
		return dest, true
	}

	w, err := ecmwf.NewRawWriter(filepath.Join(f.cfg.RawRoot, req.Identity()+".grib2"), f.cfg.Compress)
	if err != nil {
		f.log.Error("download failed", "request", req.Identity(), "error", err)
		return "", false
	}

	for _, url := range req.StepURLs(f.cfg.Endpoint) {
		if err := ecmwf.FetchURL(ctx, f.cfg.Client, url, w); err != nil {
			f.log.Error("download failed", "request", req.Identity(), "url", url, "error", err)
			w.Abort()
			return "", false
		}
	}

	path, err := w.Commit()
	if err != nil {
		f.log.Error("download failed", "request", req.Identity(), "error", err)
		return "", false
	}

	f.log.Debug("download complete", "request", req.Identity(), "path", path)
	return path, true
}
