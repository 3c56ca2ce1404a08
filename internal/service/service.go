// Package service exposes the ingestion use case: expand a date range into
// provider requests and run them through the pipeline.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weatherweaver/weatherweaver/internal/logging"
	"github.com/weatherweaver/weatherweaver/internal/metrics"
	"github.com/weatherweaver/weatherweaver/internal/request"
)

// Runner runs a request batch. Satisfied by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, requests []request.Request) ([]string, error)
}

// Service is the entry point callers drive: one provider builder bound to
// one pipeline runner.
type Service struct {
	builder request.Builder
	runner  Runner
	metrics *metrics.Metrics
	log     *slog.Logger
}

// New creates a Service.
func New(builder request.Builder, runner Runner, m *metrics.Metrics) *Service {
	return &Service{
		builder: builder,
		runner:  runner,
		metrics: m,
		log:     logging.Component("service"),
	}
}

// DownloadDatasets builds the default requests for offsetCount periods
// starting at start and processes them. It returns the artifact paths
// produced by this call; paths of artifacts that already existed are not
// repeated.
func (s *Service) DownloadDatasets(ctx context.Context, start time.Time, offsetCount int, unit request.OffsetUnit) ([]string, error) {
	requests, err := request.Expand(s.builder, start, offsetCount, unit)
	if err != nil {
		return nil, fmt.Errorf("expand requests: %w", err)
	}

	source := s.builder.Source()
	s.metrics.RequestsBuilt.WithLabelValues(source).Add(float64(len(requests)))
	s.log.Info("requests built",
		"source", source,
		"start", start.Format("2006-01-02"),
		"offsets", offsetCount,
		"unit", unit,
		"requests", len(requests))

	return s.runner.Run(ctx, requests)
}
