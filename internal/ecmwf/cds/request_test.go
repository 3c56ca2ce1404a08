package cds

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherweaver/weatherweaver/internal/geo"
)

var testArea = geo.BoundingBox{North: 73.5, West: -27, South: 33, East: 45}

func yearRequest() Request {
	b := NewBuilder(testArea)
	return b.DefaultRequests(time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC))[0].(Request)
}

func TestIdentityDeterministic(t *testing.T) {
	a, b := yearRequest(), yearRequest()
	assert.Equal(t, a.Identity(), b.Identity(), "structurally equal requests share an identity")
}

func TestIdentityChangesWithParameters(t *testing.T) {
	a, b := yearRequest(), yearRequest()
	b.Years = []string{"2023"}
	assert.NotEqual(t, a.Identity(), b.Identity())

	c := yearRequest()
	c.Area.North = 74
	assert.NotEqual(t, a.Identity(), c.Identity())
}

func TestIdentityShape(t *testing.T) {
	id := yearRequest().Identity()
	require.True(t, strings.HasPrefix(id, DatasetERA5SingleLevels+"/"))
	assert.Len(t, strings.TrimPrefix(id, DatasetERA5SingleLevels+"/"), 64, "sha256 hex digest")
}

func TestDefaultRequestsCoverWholeYear(t *testing.T) {
	requests := NewBuilder(testArea).DefaultRequests(time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC))
	require.Len(t, requests, 1, "historical data fetched at year granularity")

	req := requests[0].(Request)
	assert.Equal(t, []string{"2022"}, req.Years)
	assert.Len(t, req.Months, 12)
	assert.Len(t, req.Days, 31)
	assert.Len(t, req.Times, 24)
	assert.Equal(t, "reanalysis", req.ProductType)
	assert.Equal(t, Variables, req.Variables)
}

func TestRunDate(t *testing.T) {
	req := yearRequest()
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), req.RunDate())
}

func TestPayloadAreaOrder(t *testing.T) {
	p := yearRequest().payload()
	assert.Equal(t, []float64{73.5, -27, 33, 45}, p.Area, "north, west, south, east")
	assert.Equal(t, "grib", p.Format)
}
