package request

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRequest struct {
	date time.Time
	n    int
}

func (r stubRequest) Identity() string   { return fmt.Sprintf("%s/%d", r.date.Format("20060102"), r.n) }
func (r stubRequest) RunDate() time.Time { return r.date }
func (r stubRequest) Source() string     { return "stub" }
func (r stubRequest) String() string     { return r.Identity() }

type stubBuilder struct {
	perDate int
}

func (b stubBuilder) Source() string { return "stub" }

func (b stubBuilder) DefaultRequests(runDate time.Time) []Request {
	out := make([]Request, 0, b.perDate)
	for i := 0; i < b.perDate; i++ {
		out = append(out, stubRequest{date: runDate, n: i})
	}
	return out
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestExpandDaily(t *testing.T) {
	reqs, err := Expand(stubBuilder{perDate: 1}, date("2022-01-01"), 2, UnitDaily)
	require.NoError(t, err)

	require.Len(t, reqs, 2)
	assert.Equal(t, date("2022-01-01"), reqs[0].RunDate())
	assert.Equal(t, date("2022-01-02"), reqs[1].RunDate())
}

func TestExpandDailyAcrossMonthBoundary(t *testing.T) {
	reqs, err := Expand(stubBuilder{perDate: 1}, date("2022-02-27"), 3, UnitDaily)
	require.NoError(t, err)

	require.Len(t, reqs, 3)
	assert.Equal(t, date("2022-03-01"), reqs[2].RunDate())
}

func TestExpandYearly(t *testing.T) {
	reqs, err := Expand(stubBuilder{perDate: 1}, date("2020-06-15"), 3, UnitYearly)
	require.NoError(t, err)

	require.Len(t, reqs, 3)
	assert.Equal(t, date("2020-06-15"), reqs[0].RunDate())
	assert.Equal(t, date("2021-06-15"), reqs[1].RunDate())
	assert.Equal(t, date("2022-06-15"), reqs[2].RunDate())
}

func TestExpandFlattensDateMajor(t *testing.T) {
	reqs, err := Expand(stubBuilder{perDate: 3}, date("2022-01-01"), 2, UnitDaily)
	require.NoError(t, err)

	require.Len(t, reqs, 6)
	for i, r := range reqs {
		wantDate := date("2022-01-01").AddDate(0, 0, i/3)
		assert.Equal(t, wantDate, r.RunDate(), "request %d", i)
	}
}

func TestExpandUnsupportedUnit(t *testing.T) {
	_, err := Expand(stubBuilder{perDate: 1}, date("2022-01-01"), 1, OffsetUnit("hourly"))
	assert.ErrorIs(t, err, ErrUnsupportedOffsetUnit)
}

func TestExpandRejectsNonPositiveCount(t *testing.T) {
	_, err := Expand(stubBuilder{perDate: 1}, date("2022-01-01"), 0, UnitDaily)
	assert.Error(t, err)
}

func TestParseOffsetUnit(t *testing.T) {
	u, err := ParseOffsetUnit("daily")
	require.NoError(t, err)
	assert.Equal(t, UnitDaily, u)

	u, err = ParseOffsetUnit("yearly")
	require.NoError(t, err)
	assert.Equal(t, UnitYearly, u)

	_, err = ParseOffsetUnit("weekly")
	assert.ErrorIs(t, err, ErrUnsupportedOffsetUnit)
}
