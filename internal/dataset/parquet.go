package dataset

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// ParquetConfig configures artifact encoding.
type ParquetConfig struct {
	Compression string // "snappy" | "zstd" | "uncompressed"
}

// DefaultParquetConfig returns the encoding used for stored artifacts.
func DefaultParquetConfig() ParquetConfig {
	return ParquetConfig{Compression: "snappy"}
}

// ToParquet encodes the dataset as a single parquet file in memory.
func (d *Dataset) ToParquet(cfg ParquetConfig) ([]byte, error) {
	codec, err := codecFor(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[Row](&buf, parquet.Compression(codec))

	if len(d.Rows) > 0 {
		if _, err := w.Write(d.Rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}

	return buf.Bytes(), nil
}

// FromParquet decodes a parquet artifact back into a dataset.
func FromParquet(data []byte) (*Dataset, error) {
	rows, err := parquet.Read[Row](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return &Dataset{Rows: rows}, nil
}

func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unknown parquet compression %q", name)
	}
}
