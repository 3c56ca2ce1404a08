// Package pipeline orchestrates the fetch, transform and store stages for a
// batch of ingestion requests. It owns no provider or storage logic; both
// sit behind collaborator contracts so the orchestration can be tested with
// fakes and reused across data sources.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/weatherweaver/weatherweaver/internal/dataset"
	"github.com/weatherweaver/weatherweaver/internal/geo"
	"github.com/weatherweaver/weatherweaver/internal/logging"
	"github.com/weatherweaver/weatherweaver/internal/metrics"
	"github.com/weatherweaver/weatherweaver/internal/request"
	"github.com/weatherweaver/weatherweaver/internal/storage"
)

// Fetcher downloads the raw file behind a request. A false return means the
// request could not be satisfied; the fetcher has already logged the cause
// and removed any partial file. Absence is not an error: publication lag is
// routine for forecast feeds.
type Fetcher interface {
	DownloadRawFile(ctx context.Context, req request.Request) (rawPath string, ok bool)
}

// Transformer turns a raw file into a geotagged dataset restricted to the
// filter's regions.
type Transformer interface {
	Transform(ctx context.Context, rawPath string, req request.Request, filter *geo.Filter) (*dataset.Dataset, error)
}

// Config holds orchestration tuning.
type Config struct {
	Workers          int
	QueueSize        int
	MinArtifactBytes int64 // artifacts at or below this size are rebuilt
}

// DefaultMinArtifactBytes is the validity threshold for stored artifacts.
const DefaultMinArtifactBytes = 1_000_000

// Orchestrator runs request batches through fetch, transform and store with
// bounded concurrency. One instance is reusable across runs.
type Orchestrator struct {
	cfg         Config
	fetcher     Fetcher
	transformer Transformer
	store       storage.ArtifactStore
	filter      *geo.Filter
	metrics     *metrics.Metrics
	clock       clockwork.Clock
	log         *slog.Logger
}

// New creates an Orchestrator. Workers defaults to 1, the artifact size
// threshold to DefaultMinArtifactBytes.
func New(cfg Config, fetcher Fetcher, transformer Transformer, store storage.ArtifactStore, filter *geo.Filter, m *metrics.Metrics, clock clockwork.Clock) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MinArtifactBytes == 0 {
		cfg.MinArtifactBytes = DefaultMinArtifactBytes
	}
	return &Orchestrator{
		cfg:         cfg,
		fetcher:     fetcher,
		transformer: transformer,
		store:       store,
		filter:      filter,
		metrics:     m,
		clock:       clock,
		log:         logging.Component("pipeline"),
	}
}

// ArtifactPath returns the request's artifact key relative to the store
// root. Request identity is the sole link between a request and its
// artifact; no separate index exists.
func ArtifactPath(req request.Request) string {
	return req.Identity() + ".parquet"
}

type taskStatus int

const (
	statusProduced taskStatus = iota
	statusDropped
	statusFailed
)

type taskResult struct {
	status taskStatus
	path   string
}

// Run processes the batch and returns the artifact paths produced in this
// run, in no particular order. Requests whose artifact is already valid are
// skipped before any worker starts. A fetch miss drops the request; a
// transform or store error fails it; neither affects sibling requests, so
// Run only returns an error when the context is cancelled. Cancellation
// stops dispatching new work and lets in-flight tasks finish.
func (o *Orchestrator) Run(ctx context.Context, requests []request.Request) ([]string, error) {
	start := o.clock.Now()
	runLog := o.log.With("run_id", logging.NewRunID())
	runLog.Info("run starting", "requested", len(requests))

	var pending []request.Request
	skipped := 0
	for _, req := range requests {
		if o.store.IsValid(ctx, ArtifactPath(req), o.cfg.MinArtifactBytes) {
			skipped++
			o.metrics.RequestsSkipped.WithLabelValues(req.Source()).Inc()
			logging.RequestLogger(runLog, req.Identity()).Debug("request skipped, artifact valid")
			continue
		}
		pending = append(pending, req)
	}

	workers := o.cfg.Workers
	if len(pending) < workers {
		workers = len(pending)
	}

	tasks := make(chan request.Request, o.cfg.QueueSize)
	results := make(chan taskResult, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLog := logging.WorkerLogger(runLog, id)
			for req := range tasks {
				o.metrics.QueueDepth.Dec()
				o.metrics.WorkersActive.Inc()
				results <- o.process(ctx, req, workerLog)
				o.metrics.WorkersActive.Dec()
			}
		}(i)
	}

dispatch:
	for _, req := range pending {
		o.metrics.QueueDepth.Inc()
		select {
		case tasks <- req:
		case <-ctx.Done():
			o.metrics.QueueDepth.Dec()
			break dispatch
		}
	}
	close(tasks)
	wg.Wait()
	close(results)

	var produced []string
	dropped, failed := 0, 0
	for res := range results {
		switch res.status {
		case statusProduced:
			produced = append(produced, res.path)
		case statusDropped:
			dropped++
		case statusFailed:
			failed++
		}
	}

	elapsed := o.clock.Since(start)
	runLog.Info("run complete",
		"requested", len(requests),
		"skipped", skipped,
		"produced", len(produced),
		"dropped", dropped,
		"failed", failed,
		"elapsed", elapsed)

	if len(requests) > 0 {
		source := requests[0].Source()
		o.metrics.RunDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	}

	if err := ctx.Err(); err != nil {
		return produced, err
	}
	return produced, nil
}

// process runs one request through fetch, transform and store.
func (o *Orchestrator) process(ctx context.Context, req request.Request, workerLog *slog.Logger) taskResult {
	log := logging.RequestLogger(workerLog, req.Identity())
	source := req.Source()

	fetchStart := o.clock.Now()
	rawPath, ok := o.fetcher.DownloadRawFile(ctx, req)
	o.metrics.StageDuration.WithLabelValues(source, "fetch").Observe(o.clock.Since(fetchStart).Seconds())
	if !ok {
		log.Warn("request dropped, no raw file")
		o.metrics.RequestsDropped.WithLabelValues(source).Inc()
		return taskResult{status: statusDropped}
	}

	transformStart := o.clock.Now()
	ds, err := o.transformer.Transform(ctx, rawPath, req, o.filter)
	o.metrics.StageDuration.WithLabelValues(source, "transform").Observe(o.clock.Since(transformStart).Seconds())
	if err != nil {
		log.Error("transform failed", "error", err)
		o.metrics.TaskFailures.WithLabelValues(source, "transform").Inc()
		return taskResult{status: statusFailed}
	}

	path := ArtifactPath(req)
	storeStart := o.clock.Now()
	checksum, err := o.store.Store(ctx, ds, path)
	o.metrics.StageDuration.WithLabelValues(source, "store").Observe(o.clock.Since(storeStart).Seconds())
	if err != nil {
		log.Error("store failed", "error", err)
		o.metrics.TaskFailures.WithLabelValues(source, "store").Inc()
		return taskResult{status: statusFailed}
	}

	o.metrics.ArtifactsStored.WithLabelValues(source).Inc()
	log.Info("artifact stored", "path", path, "rows", ds.Len(), "checksum", checksum)
	return taskResult{status: statusProduced, path: path}
}
