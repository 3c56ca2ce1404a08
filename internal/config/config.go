// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all service settings.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Paths    PathsConfig    `yaml:"paths"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Storage  StorageConfig  `yaml:"storage"`
	CDS      CDSConfig      `yaml:"cds"`
	OpenData OpenDataConfig `yaml:"open_data"`
	Areas    []AreaConfig   `yaml:"areas"`
}

type LoggingConfig struct {
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
	Addr    string `yaml:"addr" envconfig:"METRICS_ADDR"`
}

type PathsConfig struct {
	// RawRoot holds provider wire-format downloads keyed by request identity.
	RawRoot string `yaml:"raw_root" envconfig:"RAW_ROOT"`
	// ProcessedRoot holds finished artifacts keyed by request identity.
	ProcessedRoot string `yaml:"processed_root" envconfig:"PROCESSED_ROOT"`
	// DataDir caches support files such as the region boundary catalog.
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`
}

type PipelineConfig struct {
	Workers          int   `yaml:"workers" envconfig:"WORKERS"`
	QueueSize        int   `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
	MinArtifactBytes int64 `yaml:"min_artifact_bytes" envconfig:"MIN_ARTIFACT_BYTES"`
	// CompressRaw stores raw downloads zstd-compressed to save disk on large
	// GRIB files. The transform side decompresses transparently.
	CompressRaw bool `yaml:"compress_raw" envconfig:"COMPRESS_RAW"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" envconfig:"STORAGE_BACKEND"` // "local" | "blob"
	// BucketURL selects the blob backend driver, e.g. "s3://bucket?region=eu-west-1",
	// "gs://bucket" or "file:///var/data/processed".
	BucketURL string `yaml:"bucket_url" envconfig:"STORAGE_BUCKET_URL"`
	Prefix    string `yaml:"prefix" envconfig:"STORAGE_PREFIX"`
}

type CDSConfig struct {
	Endpoint string `yaml:"endpoint" envconfig:"CDS_ENDPOINT"`
	APIKey   string `yaml:"api_key" envconfig:"CDS_API_KEY"`
}

type OpenDataConfig struct {
	Endpoint string `yaml:"endpoint" envconfig:"OPEN_DATA_ENDPOINT"`
}

// AreaConfig names a geographic area selectable from the CLI. An area is
// either a list of region identifiers, a bounding box, or both (the catalog
// is then intersected with the box and clipped to it).
type AreaConfig struct {
	ID string `yaml:"id"`
	// BoundingBox uses the provider notation, e.g. "N: 73.5 W: -27 S: 33 E: 45".
	BoundingBox string   `yaml:"bounding_box"`
	RegionISO3s []string `yaml:"region_iso3s"`
}

// Default returns the built-in configuration before file and env overrides.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Format: "text", Level: "info"},
		Metrics: MetricsConfig{Enabled: false, Addr: ":9090"},
		Paths: PathsConfig{
			RawRoot:       "./data/raw",
			ProcessedRoot: "./data/processed",
			DataDir:       "./data",
		},
		Pipeline: PipelineConfig{
			Workers:          5,
			QueueSize:        0, // derived from workers when unset
			MinArtifactBytes: 1_000_000,
		},
		Storage: StorageConfig{Backend: "local"},
		CDS: CDSConfig{
			Endpoint: "https://cds.climate.copernicus.eu/api/v2",
		},
		OpenData: OpenDataConfig{
			Endpoint: "https://data.ecmwf.int/forecasts",
		},
		Areas: []AreaConfig{
			{
				ID:          "entsoe",
				BoundingBox: "N: 73.5 W: -27 S: 33 E: 45",
				RegionISO3s: ENTSOEISO3s,
			},
		},
	}
}

// Load reads configuration from an optional YAML file, then applies
// environment overrides, then validates. A missing path is not an error;
// defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process("WEAVER", &cfg); err != nil {
		return Config{}, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration before any work is scheduled.
func (c Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return errors.New("pipeline.workers must be at least 1")
	}
	if c.Pipeline.MinArtifactBytes <= 0 {
		return errors.New("pipeline.min_artifact_bytes must be positive")
	}
	switch c.Storage.Backend {
	case "local":
	case "blob":
		if c.Storage.BucketURL == "" {
			return errors.New("storage.bucket_url is required for the blob backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Paths.RawRoot == "" || c.Paths.ProcessedRoot == "" {
		return errors.New("paths.raw_root and paths.processed_root are required")
	}
	seen := make(map[string]bool, len(c.Areas))
	for _, a := range c.Areas {
		if a.ID == "" {
			return errors.New("area with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate area id %q", a.ID)
		}
		seen[a.ID] = true
		if a.BoundingBox == "" && len(a.RegionISO3s) == 0 {
			return fmt.Errorf("area %q needs a bounding box, region list, or both", a.ID)
		}
	}
	return nil
}

// Area returns the area configuration with the given id.
func (c Config) Area(id string) (AreaConfig, error) {
	for _, a := range c.Areas {
		if a.ID == id {
			return a, nil
		}
	}
	return AreaConfig{}, fmt.Errorf("unknown area %q", id)
}

// ENTSOEISO3s lists the ISO3 codes of ENTSO-E member countries, the default
// area for power-market weather ingestion.
var ENTSOEISO3s = []string{
	"NOR", "FRA", "SWE", "POL", "AUT", "HUN", "ROU", "LTU", "LVA", "EST",
	"DEU", "BGR", "GRC", "ALB", "HRV", "CHE", "LUX", "BEL", "NLD", "PRT",
	"ESP", "IRL", "ITA", "DNK", "GBR", "ISL", "SVN", "FIN", "SVK", "CZE",
	"CYP", "BIH", "MKD", "SRB", "MNE",
}
