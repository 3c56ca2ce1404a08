// Package dataset holds the tabular geodataset produced by transforming a raw
// weather file, and its parquet artifact encoding.
package dataset

import (
	"time"
)

// Row is a single observation point in long format: one parameter value at
// one grid point and valid time. Region fields are filled in by the spatial
// join during transform.
type Row struct {
	Latitude  float64 `parquet:"latitude"`
	Longitude float64 `parquet:"longitude"`

	// RunTime is the model initialisation time; ValidTime is RunTime plus the
	// forecast step (they coincide for reanalysis data).
	RunTime   time.Time `parquet:"run_time,timestamp(millisecond)"`
	ValidTime time.Time `parquet:"valid_time,timestamp(millisecond)"`

	// EnsembleMember is zero for deterministic streams.
	EnsembleMember int32 `parquet:"ensemble_member"`

	Parameter string  `parquet:"parameter"` // e.g. "2t", "tp"
	Value     float64 `parquet:"value"`

	// Region tag assigned by the spatial join.
	RegionISO3 string `parquet:"region_iso3"`
	RegionName string `parquet:"region_name"`

	IngestedAt time.Time `parquet:"ingested_at,timestamp(millisecond)"`
}

// Dataset is an in-memory tabular geodataset.
type Dataset struct {
	Rows []Row
}

// New wraps rows into a Dataset.
func New(rows []Row) *Dataset {
	return &Dataset{Rows: rows}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}
