// Package geo provides the spatial region filter shared read-only by all
// pipeline tasks of a run: a set of boundary geometries, a containment
// predicate and a derived bounding envelope.
package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"

	"github.com/weatherweaver/weatherweaver/internal/dataset"
)

// ErrNoRegions is returned when a constructor would produce a filter with an
// empty region set.
var ErrNoRegions = errors.New("geo filter has no regions")

// Filter is an immutable region descriptor. It must never be mutated after
// construction; all pipeline tasks of a run share one instance by reference.
type Filter struct {
	regions  []Region
	envelope orb.Bound
}

// newFilter derives the envelope from the region set. The envelope is always
// the union of the region geometry bounds; constructors and subset operations
// recompute it, so it can never go stale.
func newFilter(regions []Region) (*Filter, error) {
	if len(regions) == 0 {
		return nil, ErrNoRegions
	}

	env := regions[0].Geometry.Bound()
	for _, r := range regions[1:] {
		env = env.Union(r.Geometry.Bound())
	}

	return &Filter{regions: regions, envelope: env}, nil
}

// FromBoundingBox builds a filter whose single region is the rectangle
// itself. Rows inside it are tagged with the synthetic region id "bbox".
func FromBoundingBox(box BoundingBox) (*Filter, error) {
	return newFilter([]Region{{
		ISO3:     "bbox",
		Name:     box.String(),
		Geometry: box.Polygon(),
	}})
}

// FromRegions builds a filter from catalog regions selected by ISO3 id.
// Unknown identifiers are an error: a silent miss would quietly widen or
// narrow the area of interest.
func FromRegions(catalog *Catalog, iso3s []string) (*Filter, error) {
	regions := make([]Region, 0, len(iso3s))
	for _, iso3 := range iso3s {
		r, ok := catalog.Region(iso3)
		if !ok {
			return nil, fmt.Errorf("region %q not in catalog", iso3)
		}
		regions = append(regions, r)
	}
	return newFilter(regions)
}

// FromCatalogClip intersects the catalog with the rectangle and clips each
// intersecting region's boundary to it.
func FromCatalogClip(catalog *Catalog, box BoundingBox) (*Filter, error) {
	bound := box.Bound()

	var regions []Region
	for _, r := range catalog.Regions() {
		if !bound.Intersects(r.Geometry.Bound()) {
			continue
		}
		clipped := clip.Geometry(bound, r.Geometry)
		if clipped == nil {
			continue
		}
		regions = append(regions, Region{ISO3: r.ISO3, Name: r.Name, Geometry: clipped})
	}
	return newFilter(regions)
}

// Subset returns a new filter restricted to the given region ids. The
// envelope of the new filter is recomputed from the surviving geometries.
func (f *Filter) Subset(iso3s []string) (*Filter, error) {
	keep := make(map[string]bool, len(iso3s))
	for _, iso3 := range iso3s {
		keep[iso3] = true
	}

	var regions []Region
	for _, r := range f.regions {
		if keep[r.ISO3] {
			regions = append(regions, r)
		}
	}
	return newFilter(regions)
}

// Regions returns the filter's region set.
func (f *Filter) Regions() []Region {
	return f.regions
}

// Envelope returns the union bounds of all region geometries, usable as a
// cheap pre-filter before the exact containment predicate.
func (f *Filter) Envelope() orb.Bound {
	return f.envelope
}

// BoundingBox returns the envelope in lat/lon box form.
func (f *Filter) BoundingBox() BoundingBox {
	return FromBound(f.envelope)
}

// Locate returns the first region containing the point, if any.
func (f *Filter) Locate(pt orb.Point) (Region, bool) {
	if !f.envelope.Contains(pt) {
		return Region{}, false
	}
	for _, r := range f.regions {
		if geometryContains(r.Geometry, pt) {
			return r, true
		}
	}
	return Region{}, false
}

// Restrict keeps only rows whose point falls inside the region set and tags
// each survivor with the matching region. One pass both filters and geotags.
func (f *Filter) Restrict(rows []dataset.Row) []dataset.Row {
	out := make([]dataset.Row, 0, len(rows))
	for _, row := range rows {
		r, ok := f.Locate(orb.Point{row.Longitude, row.Latitude})
		if !ok {
			continue
		}
		row.RegionISO3 = r.ISO3
		row.RegionName = r.Name
		out = append(out, row)
	}
	return out
}

// InEnvelope reports whether the point passes the cheap bound pre-filter.
func (f *Filter) InEnvelope(pt orb.Point) bool {
	return f.envelope.Contains(pt)
}

func geometryContains(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	case orb.Bound:
		return geom.Contains(pt)
	default:
		// Clipping can degenerate a sliver region to a line or point; those
		// contain no grid points.
		return false
	}
}
