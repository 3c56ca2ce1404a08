// Package cds fetches ERA5 reanalysis data from the Copernicus Climate
// Data Store.
package cds

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/weatherweaver/weatherweaver/internal/geo"
	"github.com/weatherweaver/weatherweaver/internal/request"
)

// Source identifies this provider in logs, metrics and CLI flags.
const Source = "ecmwf-cds"

// DatasetERA5SingleLevels is the surface-level reanalysis dataset.
const DatasetERA5SingleLevels = "reanalysis-era5-single-levels"

// Variables are the long-name reanalysis counterparts of the open-data
// parameter set.
var Variables = []string{
	"2m_temperature",
	"total_precipitation",
	"10m_u_component_of_wind",
	"10m_v_component_of_wind",
}

// Request describes one CDS retrieval.
type Request struct {
	Dataset     string
	Years       []string
	Months      []string
	Days        []string
	Times       []string
	Variables   []string
	ProductType string
	Area        geo.BoundingBox
}

// payload is the JSON body the CDS API accepts. Field order is fixed, so
// marshaling the same request always yields the same bytes.
type payload struct {
	ProductType string    `json:"product_type"`
	Variable    []string  `json:"variable"`
	Year        []string  `json:"year"`
	Month       []string  `json:"month"`
	Day         []string  `json:"day"`
	Time        []string  `json:"time"`
	Area        []float64 `json:"area"` // north, west, south, east
	Format      string    `json:"format"`
}

func (r Request) payload() payload {
	return payload{
		ProductType: r.ProductType,
		Variable:    r.Variables,
		Year:        r.Years,
		Month:       r.Months,
		Day:         r.Days,
		Time:        r.Times,
		Area:        []float64{r.Area.North, r.Area.West, r.Area.South, r.Area.East},
		Format:      "grib",
	}
}

// Identity hashes the canonical request payload under the dataset name.
// Retrieval parameter lists are too long for a readable handle, so the
// identity is content-addressed instead.
func (r Request) Identity() string {
	data, err := json.Marshal(r.payload())
	if err != nil {
		// payload contains only marshalable types
		panic(err)
	}
	sum := sha256.Sum256(data)
	return r.Dataset + "/" + hex.EncodeToString(sum[:])
}

// RunDate returns the first day of the earliest requested year.
func (r Request) RunDate() time.Time {
	if len(r.Years) == 0 {
		return time.Time{}
	}
	year, err := strconv.Atoi(r.Years[0])
	if err != nil {
		return time.Time{}
	}
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
}

// Source implements request.Request.
func (r Request) Source() string {
	return Source
}

func (r Request) String() string {
	return fmt.Sprintf("%s/%s years=%v", Source, r.Dataset, r.Years)
}

// Builder produces reanalysis requests at year granularity: historical
// data is bulk-fetched one whole year at a time.
type Builder struct {
	area geo.BoundingBox
}

// NewBuilder returns a builder restricted to the given area.
func NewBuilder(area geo.BoundingBox) *Builder {
	return &Builder{area: area}
}

// Source implements request.Builder.
func (b *Builder) Source() string {
	return Source
}

// DefaultRequests returns a single request covering every month, day and
// hour of the run date's year.
func (b *Builder) DefaultRequests(runDate time.Time) []request.Request {
	months := make([]string, 12)
	for i := range months {
		months[i] = strconv.Itoa(i + 1)
	}
	days := make([]string, 31)
	for i := range days {
		days[i] = strconv.Itoa(i + 1)
	}
	times := make([]string, 24)
	for i := range times {
		times[i] = fmt.Sprintf("%02d:00", i)
	}

	return []request.Request{Request{
		Dataset:     DatasetERA5SingleLevels,
		Years:       []string{strconv.Itoa(runDate.Year())},
		Months:      months,
		Days:        days,
		Times:       times,
		Variables:   Variables,
		ProductType: "reanalysis",
		Area:        b.area,
	}}
}
