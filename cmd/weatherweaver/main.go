// Command weatherweaver downloads geophysical forecast data, restricts it to
// an area of interest and stores it as parquet artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/weatherweaver/weatherweaver/internal/config"
	"github.com/weatherweaver/weatherweaver/internal/dataset"
	"github.com/weatherweaver/weatherweaver/internal/ecmwf/cds"
	"github.com/weatherweaver/weatherweaver/internal/ecmwf/opendata"
	"github.com/weatherweaver/weatherweaver/internal/geo"
	"github.com/weatherweaver/weatherweaver/internal/logging"
	"github.com/weatherweaver/weatherweaver/internal/metrics"
	"github.com/weatherweaver/weatherweaver/internal/pipeline"
	"github.com/weatherweaver/weatherweaver/internal/request"
	"github.com/weatherweaver/weatherweaver/internal/service"
	"github.com/weatherweaver/weatherweaver/internal/storage"
	"github.com/weatherweaver/weatherweaver/internal/transform"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	args := os.Args[1:]
	// "download" is the only verb and may be omitted.
	if len(args) > 0 && args[0] == "download" {
		args = args[1:]
	}

	fs := flag.NewFlagSet("download", flag.ExitOnError)
	var (
		configPath = fs.String("config", "", "path to YAML config file")
		startStr   = fs.String("start", time.Now().UTC().Format("2006-01-02"), "anchor run date (YYYY-MM-DD)")
		source     = fs.String("source", opendata.Source, "data source: ecmwf-open-data | ecmwf-cds")
		areaID     = fs.String("area", "entsoe", "named area of interest from config")
		backend    = fs.String("storage", "", "override storage backend: local | blob")
		offset     = fs.Int("offset", 1, "number of periods to download")
		unitStr    = fs.String("unit", string(request.UnitDaily), "period unit: daily | yearly")
		workers    = fs.Int("workers", 0, "override worker count")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *backend != "" {
		cfg.Storage.Backend = *backend
	}
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}

	logging.Setup(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
	log := logging.Component("main")

	start, err := time.ParseInLocation("2006-01-02", *startStr, time.UTC)
	if err != nil {
		return fmt.Errorf("parse start date %q: %w", *startStr, err)
	}
	unit, err := request.ParseOffsetUnit(*unitStr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New("")
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(metrics.Config(cfg.Metrics)); err != nil {
				log.Error("metrics listener failed", "error", err)
			}
		}()
	}

	area, err := cfg.Area(*areaID)
	if err != nil {
		return err
	}
	filter, err := buildFilter(ctx, cfg, area)
	if err != nil {
		return fmt.Errorf("build area filter %q: %w", area.ID, err)
	}

	store, err := storage.NewArtifactStore(ctx, storage.Config{
		Backend:   cfg.Storage.Backend,
		Root:      cfg.Paths.ProcessedRoot,
		BucketURL: cfg.Storage.BucketURL,
		Prefix:    cfg.Storage.Prefix,
		Parquet:   dataset.DefaultParquetConfig(),
	})
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}
	defer store.Close()

	builder, fetcher, err := buildProvider(cfg, *source, filter)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	transformer := transform.New(transform.CSVDecoder{}, clock)
	orch := pipeline.New(pipeline.Config{
		Workers:          cfg.Pipeline.Workers,
		QueueSize:        cfg.Pipeline.QueueSize,
		MinArtifactBytes: cfg.Pipeline.MinArtifactBytes,
	}, fetcher, transformer, store, filter, m, clock)

	svc := service.New(builder, orch, m)

	produced, err := svc.DownloadDatasets(ctx, start, *offset, unit)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("run interrupted, in-flight work finished", "produced", len(produced))
			return nil
		}
		return err
	}

	log.Info("download finished", "produced", len(produced))
	for _, path := range produced {
		log.Info("artifact", "uri", store.URI(path))
	}
	return nil
}

// buildFilter maps an area configuration onto a filter construction path:
// bounding box only, region list only, or the catalog clipped to the box and
// narrowed to the listed regions.
func buildFilter(ctx context.Context, cfg config.Config, area config.AreaConfig) (*geo.Filter, error) {
	var box geo.BoundingBox
	hasBox := area.BoundingBox != ""
	if hasBox {
		var err error
		box, err = geo.ParseBoundingBox(area.BoundingBox)
		if err != nil {
			return nil, err
		}
	}

	if len(area.RegionISO3s) == 0 {
		return geo.FromBoundingBox(box)
	}

	catalogPath, err := geo.EnsureWorldCatalog(ctx, cfg.Paths.DataDir)
	if err != nil {
		return nil, err
	}
	catalog, err := geo.LoadCatalog(catalogPath)
	if err != nil {
		return nil, err
	}

	if !hasBox {
		return geo.FromRegions(catalog, area.RegionISO3s)
	}

	clipped, err := geo.FromCatalogClip(catalog, box)
	if err != nil {
		return nil, err
	}
	return clipped.Subset(area.RegionISO3s)
}

// buildProvider wires the builder and fetcher for the selected source.
func buildProvider(cfg config.Config, source string, filter *geo.Filter) (request.Builder, pipeline.Fetcher, error) {
	switch source {
	case opendata.Source:
		fetcher := opendata.NewFetcher(opendata.FetcherConfig{
			Endpoint: cfg.OpenData.Endpoint,
			RawRoot:  cfg.Paths.RawRoot,
			MinBytes: cfg.Pipeline.MinArtifactBytes,
			Compress: cfg.Pipeline.CompressRaw,
		})
		return opendata.NewBuilder(), fetcher, nil
	case cds.Source:
		fetcher := cds.NewFetcher(cds.FetcherConfig{
			Endpoint: cfg.CDS.Endpoint,
			APIKey:   cfg.CDS.APIKey,
			RawRoot:  cfg.Paths.RawRoot,
			MinBytes: cfg.Pipeline.MinArtifactBytes,
		})
		return cds.NewBuilder(filter.BoundingBox()), fetcher, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q", source)
	}
}
