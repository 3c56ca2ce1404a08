// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the ingestion pipeline.
type Metrics struct {
	// Request accounting
	RequestsBuilt    *prometheus.CounterVec
	RequestsSkipped  *prometheus.CounterVec
	RequestsDropped  *prometheus.CounterVec // fetch came back empty
	ArtifactsStored  *prometheus.CounterVec
	TaskFailures     *prometheus.CounterVec // labelled by failing stage

	// Timing
	StageDuration *prometheus.HistogramVec
	RunDuration   *prometheus.HistogramVec

	// Pipeline state
	WorkersActive prometheus.Gauge
	QueueDepth    prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Addr    string // metrics HTTP listen address, e.g. ":9090"
}

// New registers and returns pipeline metrics under the given namespace,
// using the default Prometheus registry.
func New(namespace string) *Metrics {
	return NewWith(prometheus.DefaultRegisterer, namespace)
}

// NewWith registers the metrics with an explicit registerer. Tests pass a
// fresh registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "weatherweaver"
	}

	sourceLabels := []string{"source"}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsBuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_built_total",
				Help:      "Total number of ingestion requests built",
			},
			sourceLabels,
		),
		RequestsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_skipped_total",
				Help:      "Requests skipped because a valid artifact already exists",
			},
			sourceLabels,
		),
		RequestsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_dropped_total",
				Help:      "Requests dropped because the fetch produced no raw file",
			},
			sourceLabels,
		),
		ArtifactsStored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_stored_total",
				Help:      "Artifacts successfully written to the processed store",
			},
			sourceLabels,
		),
		TaskFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_failures_total",
				Help:      "Per-request pipeline failures by stage",
			},
			[]string{"source", "stage"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
			},
			[]string{"source", "stage"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Total wall-clock time of a pipeline run",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
			},
			sourceLabels,
		),
		WorkersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workers_active",
				Help:      "Number of worker goroutines currently processing a request",
			},
		),
		QueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Requests waiting in the work queue",
			},
		),
	}
}

// Serve starts the metrics HTTP listener. It blocks, so callers typically run
// it in a goroutine.
func Serve(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(cfg.Addr, mux)
}
