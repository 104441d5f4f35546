package persist

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	treecfg "github.com/xtxerr/startree/internal/startree/config"
	"github.com/xtxerr/startree/internal/startree/types"
)

// leafRow is the parquet row shape for one aggregated record. Dimension
// values and metric values are positional, in config declaration order, so
// the schema is identical for every collection and the config file is the
// single source of column meaning.
type leafRow struct {
	Dimensions []string  `parquet:"dimensions"`
	Metrics    []float64 `parquet:"metrics"`
	Time       int64     `parquet:"time"`
}

func toRow(cfg *treecfg.StarTreeConfig, r types.Record) leafRow {
	row := leafRow{
		Dimensions: make([]string, len(cfg.Dimensions)),
		Metrics:    make([]float64, len(cfg.Metrics)),
		Time:       r.Time,
	}
	for i, d := range cfg.Dimensions {
		row.Dimensions[i] = r.Dimensions[d]
	}
	for i, m := range cfg.Metrics {
		row.Metrics[i] = r.Metrics[m.Name]
	}
	return row
}

func fromRow(cfg *treecfg.StarTreeConfig, row leafRow) (types.Record, error) {
	if len(row.Dimensions) != len(cfg.Dimensions) || len(row.Metrics) != len(cfg.Metrics) {
		return types.Record{}, fmt.Errorf("row shape %dx%d does not match schema %dx%d",
			len(row.Dimensions), len(row.Metrics), len(cfg.Dimensions), len(cfg.Metrics))
	}
	dims := make(map[string]string, len(cfg.Dimensions))
	for i, d := range cfg.Dimensions {
		dims[d] = row.Dimensions[i]
	}
	metrics := make(map[string]float64, len(cfg.Metrics))
	metricTypes := make(map[string]types.MetricType, len(cfg.Metrics))
	for i, m := range cfg.Metrics {
		metrics[m.Name] = row.Metrics[i]
		metricTypes[m.Name] = m.Type
	}
	return types.NewRecord(dims, metrics, metricTypes, row.Time), nil
}

// writeLeafBuffer writes one leaf's aggregated records as a parquet blob.
// An empty leaf still gets a blob so load can tell "empty" from "missing".
func writeLeafBuffer(path string, cfg *treecfg.StarTreeConfig, records []types.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create leaf buffer: %w", err)
	}

	w := parquet.NewGenericWriter[leafRow](f)
	rows := make([]leafRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toRow(cfg, r))
	}
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			f.Close()
			return fmt.Errorf("write leaf buffer: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close leaf buffer: %w", err)
	}
	return f.Close()
}

// readLeafBuffer reads one leaf blob back into records.
func readLeafBuffer(path string, cfg *treecfg.StarTreeConfig) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open leaf buffer: %w", err)
	}

	reader := parquet.NewGenericReader[leafRow](pf)
	defer reader.Close()

	var records []types.Record
	buf := make([]leafRow, 64)
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			r, convErr := fromRow(cfg, buf[i])
			if convErr != nil {
				return nil, convErr
			}
			records = append(records, r)
		}
		if err != nil {
			break
		}
	}
	return records, nil
}
