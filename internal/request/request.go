// Package request defines the unit of ingestion work and its expansion from a
// time range. A Request is immutable; its Identity is the only contract the
// pipeline relies on: equal parameters must produce equal identities, which is
// what makes artifact paths deterministic and reruns idempotent.
package request

import (
	"errors"
	"fmt"
	"time"
)

// Request describes one unit of ingestion work. Provider packages implement
// it with their own parameter sets; the pipeline treats everything except the
// identity as opaque.
type Request interface {
	fmt.Stringer

	// Identity is a deterministic, collision-resistant key derived from all
	// request parameters. It doubles as the relative artifact path.
	Identity() string

	// RunDate is the model run date the request covers.
	RunDate() time.Time

	// Source labels the provider for logging and metrics.
	Source() string
}

// Builder produces the default set of requests covering one run date. The
// cardinality is provider-defined: one request per date, or one per
// stream/type/run-time combination.
type Builder interface {
	Source() string
	DefaultRequests(runDate time.Time) []Request
}

// OffsetUnit is the granularity used to step from the anchor date.
type OffsetUnit string

const (
	UnitDaily  OffsetUnit = "daily"
	UnitYearly OffsetUnit = "yearly"
)

// ErrUnsupportedOffsetUnit is returned for offset units the expansion does not
// know how to step by. It is a configuration error: no work has started yet.
var ErrUnsupportedOffsetUnit = errors.New("unsupported offset unit")

// ParseOffsetUnit converts a CLI string into an OffsetUnit.
func ParseOffsetUnit(s string) (OffsetUnit, error) {
	switch OffsetUnit(s) {
	case UnitDaily:
		return UnitDaily, nil
	case UnitYearly:
		return UnitYearly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOffsetUnit, s)
	}
}

// Expand steps offsetCount run dates from start by unit and flattens the
// builder's default requests for each date, in date-major order. It is pure:
// no I/O, fully deterministic for given inputs. The output order carries no
// processing guarantee; identity, not position, is the unit of correctness.
func Expand(b Builder, start time.Time, offsetCount int, unit OffsetUnit) ([]Request, error) {
	if offsetCount < 1 {
		return nil, fmt.Errorf("offset count must be at least 1, got %d", offsetCount)
	}

	var step func(i int) time.Time
	switch unit {
	case UnitDaily:
		step = func(i int) time.Time { return start.AddDate(0, 0, i) }
	case UnitYearly:
		step = func(i int) time.Time { return start.AddDate(i, 0, 0) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOffsetUnit, unit)
	}

	var all []Request
	for i := 0; i < offsetCount; i++ {
		all = append(all, b.DefaultRequests(step(i))...)
	}
	return all, nil
}
