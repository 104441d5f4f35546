// startreed builds, persists, and queries star-tree collections.
//
// Build a collection from CSV records and persist it:
//
//	startreed -config aggregates.yaml -input records.csv -out ./data
//
// Open a persisted collection and run a point query:
//
//	startreed -config aggregates.yaml -out ./data -query "browser=chrome,country=us" -metric impressions
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xtxerr/startree/internal/logging"
	"github.com/xtxerr/startree/internal/manager"
	"github.com/xtxerr/startree/internal/startree"
	treecfg "github.com/xtxerr/startree/internal/startree/config"
	"github.com/xtxerr/startree/internal/startree/persist"
	"github.com/xtxerr/startree/internal/startree/types"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "", "collection config file (required)")
	input := flag.String("input", "", "CSV record file to build from")
	outDir := flag.String("out", ".", "root directory for persisted collections")
	queryStr := flag.String("query", "", "point query as dim=value pairs, comma separated")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	jsonLog := flag.Bool("json-log", false, "emit logs as JSON")
	rollupMetric := flag.String("rollup-metric", "", "metric for low-traffic rollup")
	rollupLimit := flag.Float64("rollup-threshold", 0, "rollup threshold for -rollup-metric")
	flag.Parse()

	logging.Init(parseLevel(*logLevel), *jsonLog)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("startreed %s", Version)

	if *cfgPath == "" {
		log.Fatal("A collection config is required (use -config)")
	}
	cfg, err := treecfg.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	mgr := manager.New(*outDir)
	if err := mgr.RegisterConfig(cfg.Collection, cfg); err != nil {
		log.Fatalf("Register config: %v", err)
	}

	// =========================================================================
	// Build
	// =========================================================================

	if *input != "" {
		var opts []startree.BuilderOption
		if *rollupMetric != "" {
			opts = append(opts, startree.WithRollupThreshold(*rollupMetric, *rollupLimit))
		}
		builder, err := startree.NewBuilder(cfg, opts...)
		if err != nil {
			log.Fatalf("Create builder: %v", err)
		}

		n, err := loadCSV(builder, cfg, *input)
		if err != nil {
			log.Fatalf("Load records: %v", err)
		}

		tree, err := builder.Seal()
		if err != nil {
			log.Fatalf("Seal tree: %v", err)
		}

		dir := filepath.Join(mgr.RootDir(), cfg.Collection)
		if err := persist.Save(tree, dir); err != nil {
			log.Fatalf("Persist tree: %v", err)
		}
		if err := tree.Close(); err != nil {
			log.Fatalf("Close tree: %v", err)
		}
		log.Printf("Built %s: %d records, %d nodes, %d leaves (persisted to %s)",
			cfg.Collection, n, tree.NodeCount(), len(tree.Leaves()), dir)
	}

	// =========================================================================
	// Query
	// =========================================================================

	if *queryStr != "" {
		if err := mgr.Open(cfg.Collection); err != nil {
			log.Fatalf("Open collection: %v", err)
		}
		defer mgr.CloseAll()

		tree, err := mgr.GetStarTree(cfg.Collection)
		if err != nil {
			log.Fatalf("Get tree: %v", err)
		}

		q, err := parseQuery(*queryStr)
		if err != nil {
			log.Fatalf("Parse query: %v", err)
		}
		result, err := tree.GetAggregate(q)
		if err != nil {
			log.Fatalf("Query: %v", err)
		}
		printResult(cfg, q, result)
	}
}

// loadCSV streams records from a CSV file into the builder. The header row
// names each column; columns must cover every dimension and metric of the
// schema, plus the time column when one is configured.
func loadCSV(builder *startree.Builder, cfg *treecfg.StarTreeConfig, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, d := range cfg.Dimensions {
		if _, ok := cols[d]; !ok {
			return 0, fmt.Errorf("input is missing dimension column %q", d)
		}
	}
	for _, m := range cfg.Metrics {
		if _, ok := cols[m.Name]; !ok {
			return 0, fmt.Errorf("input is missing metric column %q", m.Name)
		}
	}

	metricTypes := cfg.MetricTypes()
	count := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("row %d: %w", count+2, err)
		}

		dims := make(map[string]string, len(cfg.Dimensions))
		for _, d := range cfg.Dimensions {
			dims[d] = row[cols[d]]
		}
		metrics := make(map[string]float64, len(cfg.Metrics))
		mtypes := make(map[string]types.MetricType, len(cfg.Metrics))
		for i, m := range cfg.Metrics {
			v, err := strconv.ParseFloat(row[cols[m.Name]], 64)
			if err != nil {
				return count, fmt.Errorf("row %d: metric %s: %w", count+2, m.Name, err)
			}
			metrics[m.Name] = v
			mtypes[m.Name] = metricTypes[i]
		}
		var ts int64
		if tc := cfg.Time.ColumnName; tc != "" {
			idx, ok := cols[tc]
			if !ok {
				return count, fmt.Errorf("input is missing time column %q", tc)
			}
			ts, err = strconv.ParseInt(row[idx], 10, 64)
			if err != nil {
				return count, fmt.Errorf("row %d: time: %w", count+2, err)
			}
		}

		if err := builder.Add(types.NewRecord(dims, metrics, mtypes, ts)); err != nil {
			return count, fmt.Errorf("row %d: %w", count+2, err)
		}
		count++
	}
	return count, nil
}

// parseQuery turns "browser=chrome,country=us" into a point query.
// Unlisted dimensions default to the wildcard.
func parseQuery(s string) (types.Query, error) {
	q := types.NewQuery(nil)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		dim, value, ok := strings.Cut(pair, "=")
		if !ok {
			return q, fmt.Errorf("malformed query term %q (want dim=value)", pair)
		}
		q = q.With(strings.TrimSpace(dim), strings.TrimSpace(value))
	}
	return q, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printResult(cfg *treecfg.StarTreeConfig, q types.Query, r types.Record) {
	var terms []string
	for _, d := range cfg.Dimensions {
		terms = append(terms, d+"="+q.Value(d))
	}
	fmt.Printf("query: %s\n", strings.Join(terms, " "))
	for _, m := range cfg.Metrics {
		fmt.Printf("  %-20s %v\n", m.Name, r.Metrics[m.Name])
	}
}
