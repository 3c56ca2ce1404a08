// Package opendata fetches forecast files from the ECMWF open-data feed.
package opendata

import (
	"fmt"
	"time"

	"github.com/weatherweaver/weatherweaver/internal/ecmwf"
	"github.com/weatherweaver/weatherweaver/internal/request"
)

// Source identifies this provider in logs, metrics and CLI flags.
const Source = "ecmwf-open-data"

// Stream is the forecasting system producing the data.
type Stream string

const (
	// StreamOper is the high-resolution deterministic forecast.
	StreamOper Stream = "oper"
	// StreamEnfo is the ensemble forecast.
	StreamEnfo Stream = "enfo"
)

// RequestType selects the product within a stream.
type RequestType string

const (
	// TypeForecast pairs with StreamOper.
	TypeForecast RequestType = "fc"
	// TypePerturbed pairs with StreamEnfo.
	TypePerturbed RequestType = "pf"
)

// Request describes one open-data download: a model run plus the parameters
// and lead times wanted from it.
type Request struct {
	Date       time.Time // run date, midnight UTC
	RunHour    int       // 0, 6, 12 or 18
	Stream     Stream
	Type       RequestType
	Parameters []string
	Steps      []int
}

// Identity returns a deterministic, human-readable handle. Structurally
// equal requests produce equal identities; it doubles as the relative
// artifact path.
func (r Request) Identity() string {
	return fmt.Sprintf("%s/%s_%02dz_%d-%d_%s",
		r.Stream,
		r.Date.Format("20060102"),
		r.RunHour,
		r.Steps[0],
		r.Steps[len(r.Steps)-1],
		r.Type)
}

// RunDate returns the model run timestamp, run hour included.
func (r Request) RunDate() time.Time {
	return r.Date.Add(time.Duration(r.RunHour) * time.Hour)
}

// Source implements request.Request.
func (r Request) Source() string {
	return Source
}

func (r Request) String() string {
	return Source + "/" + r.Identity()
}

// StepURLs returns one download URL per forecast step, following the
// open-data bucket layout.
func (r Request) StepURLs(endpoint string) []string {
	urls := make([]string, 0, len(r.Steps))
	for _, step := range r.Steps {
		urls = append(urls, fmt.Sprintf("%s/%s/%02dz/ifs/0p25/%s/%s%02d0000-%dh-%s-%s.grib2",
			endpoint,
			r.Date.Format("20060102"),
			r.RunHour,
			r.Stream,
			r.Date.Format("20060102"),
			r.RunHour,
			step,
			r.Stream,
			r.Type))
	}
	return urls
}

// Builder produces the default request set for a run date.
type Builder struct {
	parameters []string
	steps      []int
}

// NewBuilder returns a builder using the default parameter and step set.
func NewBuilder() *Builder {
	return &Builder{
		parameters: ecmwf.NWPParameters,
		steps:      ecmwf.ForecastSteps(),
	}
}

// Source implements request.Builder.
func (b *Builder) Source() string {
	return Source
}

// DefaultRequests covers a run date with the deterministic and ensemble
// products at every published run hour: oper+fc and enfo+pf, four run
// times each.
func (b *Builder) DefaultRequests(runDate time.Time) []request.Request {
	date := time.Date(runDate.Year(), runDate.Month(), runDate.Day(), 0, 0, 0, 0, time.UTC)

	products := []struct {
		stream Stream
		typ    RequestType
	}{
		{StreamOper, TypeForecast},
		{StreamEnfo, TypePerturbed},
	}

	var requests []request.Request
	for _, p := range products {
		for _, hour := range ecmwf.RunTimes {
			requests = append(requests, Request{
				Date:       date,
				RunHour:    hour,
				Stream:     p.stream,
				Type:       p.typ,
				Parameters: b.parameters,
				Steps:      b.steps,
			})
		}
	}
	return requests
}
