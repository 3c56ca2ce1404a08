package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/weatherweaver/weatherweaver/internal/ecmwf"
	"github.com/weatherweaver/weatherweaver/internal/logging"
	"github.com/weatherweaver/weatherweaver/internal/request"
)

// DefaultEndpoint is the public CDS API root.
const DefaultEndpoint = "https://cds.climate.copernicus.eu/api/v2"

// FetcherConfig configures the CDS fetcher.
type FetcherConfig struct {
	Endpoint     string
	APIKey       string // "<uid>:<key>" as issued by the CDS portal
	RawRoot      string
	MinBytes     int64
	PollInterval time.Duration
	Client       *http.Client
	Clock        clockwork.Clock
}

// Fetcher retrieves reanalysis files through the CDS task queue: submit a
// retrieval, poll its state, download the result once completed.
type Fetcher struct {
	cfg FetcherConfig
	log *slog.Logger
}

// NewFetcher creates a Fetcher, filling in defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Client == nil {
		// Retrieval sits in a remote queue; the HTTP timeout only bounds
		// individual calls, not the overall wait.
		cfg.Client = &http.Client{Timeout: 10 * time.Minute}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Fetcher{cfg: cfg, log: logging.Component("cds-fetcher")}
}

// taskState mirrors the CDS API task resource.
type taskState struct {
	State     string `json:"state"` // queued | running | completed | failed
	RequestID string `json:"request_id"`
	Location  string `json:"location"`
	Error     struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// DownloadRawFile submits the retrieval and downloads the result into the
// raw cache. A valid cached file short-circuits the whole flow. Any failure
// is logged, partial output removed, ok=false returned.
func (f *Fetcher) DownloadRawFile(ctx context.Context, r request.Request) (string, bool) {
	req, ok := r.(Request)
	if !ok {
		f.log.Error("unsupported request type", "request", r.String())
		return "", false
	}

	dest := filepath.Join(f.cfg.RawRoot, req.Identity()+".grib")
	if ecmwf.RawFileValid(dest, f.cfg.MinBytes) {
		f.log.Debug("download skipped, raw file cached",
			"request", req.Identity(), "path", dest)
		return dest, true
	}

	location, err := f.retrieve(ctx, req)
	if err != nil {
		f.log.Error("retrieval failed", "request", req.Identity(), "error", err)
		return "", false
	}

	w, err := ecmwf.NewRawWriter(dest, false)
	if err != nil {
		f.log.Error("download failed", "request", req.Identity(), "error", err)
		return "", false
	}
	if err := ecmwf.FetchURL(ctx, f.cfg.Client, location, w); err != nil {
		f.log.Error("download failed", "request", req.Identity(), "error", err)
		w.Abort()
		return "", false
	}
	path, err := w.Commit()
	if err != nil {
		f.log.Error("download failed", "request", req.Identity(), "error", err)
		return "", false
	}

	f.log.Debug("download complete", "request", req.Identity(), "path", path)
	return path, true
}

// retrieve submits the retrieval and polls until the task completes,
// returning the result download URL.
func (f *Fetcher) retrieve(ctx context.Context, req Request) (string, error) {
	task, err := f.submit(ctx, req)
	if err != nil {
		return "", err
	}

	for {
		switch task.State {
		case "completed":
			return task.Location, nil
		case "failed":
			return "", fmt.Errorf("task failed: %s: %s", task.Error.Reason, task.Error.Message)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-f.cfg.Clock.After(f.cfg.PollInterval):
		}

		task, err = f.poll(ctx, task.RequestID)
		if err != nil {
			return "", err
		}
	}
}

func (f *Fetcher) submit(ctx context.Context, req Request) (*taskState, error) {
	body, err := json.Marshal(req.payload())
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval: %w", err)
	}

	url := fmt.Sprintf("%s/resources/%s", f.cfg.Endpoint, req.Dataset)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	f.auth(httpReq)

	return f.doTask(httpReq)
}

func (f *Fetcher) poll(ctx context.Context, requestID string) (*taskState, error) {
	url := fmt.Sprintf("%s/tasks/%s", f.cfg.Endpoint, requestID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	f.auth(httpReq)

	return f.doTask(httpReq)
}

func (f *Fetcher) doTask(httpReq *http.Request) (*taskState, error) {
	resp, err := f.cfg.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("%s %s: unexpected status %s", httpReq.Method, httpReq.URL, resp.Status)
	}

	var task taskState
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode task state: %w", err)
	}
	return &task, nil
}

// auth sets HTTP basic credentials from the "<uid>:<key>" pair.
func (f *Fetcher) auth(httpReq *http.Request) {
	uid, key, found := strings.Cut(f.cfg.APIKey, ":")
	if found {
		httpReq.SetBasicAuth(uid, key)
	}
}
