package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Region is one boundary geometry with its stable identifier.
type Region struct {
	ISO3     string
	Name     string
	Geometry orb.Geometry
}

// Catalog holds a set of named region boundaries, typically the NaturalEarth
// admin-0 country set.
type Catalog struct {
	regions []Region
}

// NewCatalog builds a catalog from explicit regions. Mostly used by tests and
// by filters that synthesize regions.
func NewCatalog(regions []Region) *Catalog {
	return &Catalog{regions: regions}
}

// LoadCatalog reads a GeoJSON feature collection of region boundaries.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	regions := make([]Region, 0, len(fc.Features))
	for _, f := range fc.Features {
		iso3 := f.Properties.MustString("ADM0_A3", "")
		if iso3 == "" {
			iso3 = f.Properties.MustString("ISO_A3", "")
		}
		if iso3 == "" || f.Geometry == nil {
			continue
		}
		regions = append(regions, Region{
			ISO3:     iso3,
			Name:     f.Properties.MustString("NAME", iso3),
			Geometry: f.Geometry,
		})
	}

	if len(regions) == 0 {
		return nil, fmt.Errorf("catalog %s contains no usable regions", path)
	}
	return &Catalog{regions: regions}, nil
}

// Regions returns all regions in the catalog.
func (c *Catalog) Regions() []Region {
	return c.regions
}

// Region looks up a region by its ISO3 identifier.
func (c *Catalog) Region(iso3 string) (Region, bool) {
	for _, r := range c.regions {
		if r.ISO3 == iso3 {
			return r, true
		}
	}
	return Region{}, false
}

const (
	worldCatalogFile = "ne_110m_admin_0_countries.geojson"
	worldCatalogURL  = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"
)

// EnsureWorldCatalog returns the path of the NaturalEarth country boundary
// file inside dataDir, downloading it first when absent.
func EnsureWorldCatalog(ctx context.Context, dataDir string) (string, error) {
	path := filepath.Join(dataDir, worldCatalogFile)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, worldCatalogURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download world catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download world catalog: unexpected status %s", resp.Status)
	}

	// Write via temp file + rename so a failed download never looks like a
	// usable catalog.
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tempPath, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("write %s: %w", tempPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename %s: %w", tempPath, err)
	}

	return path, nil
}
