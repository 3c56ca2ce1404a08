package geo

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/paulmach/orb"
)

// BoundingBox is a lat/lon rectangle in the provider notation
// "N: 73.5 W: -27 S: 33 E: 45".
type BoundingBox struct {
	North float64
	West  float64
	South float64
	East  float64
}

var bboxRe = regexp.MustCompile(`[NSWE]:\s*(-?[\d.]+)`)

// ParseBoundingBox parses the "N: .. W: .. S: .. E: .." notation.
func ParseBoundingBox(s string) (BoundingBox, error) {
	matches := bboxRe.FindAllStringSubmatch(s, -1)
	if len(matches) != 4 {
		return BoundingBox{}, fmt.Errorf("malformed bounding box %q", s)
	}

	coords := make([]float64, 4)
	for i, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("malformed bounding box %q: %w", s, err)
		}
		coords[i] = v
	}

	b := BoundingBox{North: coords[0], West: coords[1], South: coords[2], East: coords[3]}
	if b.South > b.North || b.West > b.East {
		return BoundingBox{}, fmt.Errorf("inverted bounding box %q", s)
	}
	return b, nil
}

// String renders the box in the notation ParseBoundingBox accepts.
func (b BoundingBox) String() string {
	return fmt.Sprintf("N: %g W: %g S: %g E: %g", b.North, b.West, b.South, b.East)
}

// Bound converts to an orb bound (min = SW corner, max = NE corner).
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// Polygon returns the box outline as a closed ring.
func (b BoundingBox) Polygon() orb.Polygon {
	return b.Bound().ToPolygon()
}

// FromBound converts an orb bound back into the lat/lon box form.
func FromBound(bound orb.Bound) BoundingBox {
	return BoundingBox{
		North: bound.Max[1],
		West:  bound.Min[0],
		South: bound.Min[1],
		East:  bound.Max[0],
	}
}
