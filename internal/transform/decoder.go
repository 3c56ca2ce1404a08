package transform

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CSVDecoder reads a point-table file with a
// lat,lon,step,parameter,value[,member] header row. Providers that cannot be
// decoded natively export this layout from their own tooling.
type CSVDecoder struct{}

// Decode reads all grid points from the file.
func (CSVDecoder) Decode(ctx context.Context, path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeCSV(f)
}

func decodeCSV(r io.Reader) ([]Point, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"lat", "lon", "step", "parameter", "value"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	memberIdx, hasMember := col["member"]

	var points []Point
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		lat, err := strconv.ParseFloat(record[col["lat"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(record[col["lon"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse lon: %w", line, err)
		}
		step, err := strconv.Atoi(record[col["step"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: parse step: %w", line, err)
		}
		value, err := strconv.ParseFloat(record[col["value"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse value: %w", line, err)
		}

		p := Point{
			Latitude:  lat,
			Longitude: lon,
			StepHours: step,
			Parameter: record[col["parameter"]],
			Value:     value,
		}
		if hasMember {
			member, err := strconv.ParseInt(record[memberIdx], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse member: %w", line, err)
			}
			p.EnsembleMember = int32(member)
		}
		points = append(points, p)
	}
	return points, nil
}

// ZstdDecoder transparently decompresses a zstd-compressed raw cache file
// and delegates to the inner decoder for the payload format.
type ZstdDecoder struct {
	Inner Decoder
}

// Decode decompresses the file to a temp sibling, decodes it and removes
// the temp file.
func (d ZstdDecoder) Decode(ctx context.Context, path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd reader: %w", err)
	}
	defer zr.Close()

	tmp, err := os.CreateTemp("", "weaver-raw-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, zr); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	return d.Inner.Decode(ctx, tmpPath)
}

// ForPath returns a decoder for the file, unwrapping a ".zst" suffix.
func ForPath(path string, inner Decoder) Decoder {
	if strings.HasSuffix(path, ".zst") {
		return ZstdDecoder{Inner: inner}
	}
	return inner
}
