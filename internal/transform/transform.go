// Package transform turns a fetched raw forecast file into a geotagged
// tabular dataset. Binary format decoding sits behind the Decoder seam so
// provider-specific readers can be swapped without touching the pipeline.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"

	"github.com/weatherweaver/weatherweaver/internal/dataset"
	"github.com/weatherweaver/weatherweaver/internal/geo"
	"github.com/weatherweaver/weatherweaver/internal/logging"
	"github.com/weatherweaver/weatherweaver/internal/request"
)

// Point is one decoded grid value before geotagging. StepHours is the
// forecast lead time relative to the model run time.
type Point struct {
	Latitude       float64
	Longitude      float64
	StepHours      int
	Parameter      string
	Value          float64
	EnsembleMember int32
}

// Decoder reads a raw provider file into grid points.
type Decoder interface {
	Decode(ctx context.Context, path string) ([]Point, error)
}

// Transformer decodes, spatially restricts and timestamps raw files.
type Transformer struct {
	decoder Decoder
	clock   clockwork.Clock
	log     *slog.Logger
}

// New creates a Transformer around the given decoder.
func New(decoder Decoder, clock clockwork.Clock) *Transformer {
	return &Transformer{
		decoder: decoder,
		clock:   clock,
		log:     logging.Component("transform"),
	}
}

// Transform decodes the raw file, keeps only points inside the filter's
// regions and stamps each surviving row with valid and ingestion times.
// Valid time is the run time plus the forecast step.
func (t *Transformer) Transform(ctx context.Context, rawPath string, req request.Request, filter *geo.Filter) (*dataset.Dataset, error) {
	points, err := ForPath(rawPath, t.decoder).Decode(ctx, rawPath)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawPath, err)
	}

	runTime := req.RunDate()
	ingestedAt := t.clock.Now().UTC()

	rows := make([]dataset.Row, 0, len(points))
	for _, p := range points {
		// Cheap envelope check before the exact point-in-polygon join.
		if !filter.InEnvelope(orb.Point{p.Longitude, p.Latitude}) {
			continue
		}
		rows = append(rows, dataset.Row{
			Latitude:       p.Latitude,
			Longitude:      p.Longitude,
			RunTime:        runTime,
			ValidTime:      runTime.Add(time.Duration(p.StepHours) * time.Hour),
			EnsembleMember: p.EnsembleMember,
			Parameter:      p.Parameter,
			Value:          p.Value,
			IngestedAt:     ingestedAt,
		})
	}

	restricted := filter.Restrict(rows)
	t.log.Debug("transformed raw file",
		"path", rawPath,
		"request", req.Identity(),
		"decoded", len(points),
		"kept", len(restricted))

	return dataset.New(restricted), nil
}
