package startree

import (
	"log/slog"

	sentinel "github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/errors"
	"github.com/xtxerr/startree/internal/logging"
	"github.com/xtxerr/startree/internal/startree/config"
	"github.com/xtxerr/startree/internal/startree/stats"
	"github.com/xtxerr/startree/internal/startree/types"
)

// Builder ingests raw records into a tree under construction and seals it
// into a queryable Tree. Ingestion is single-threaded: the external batch
// driver feeds records sequentially and no reader sees the tree before Seal
// returns.
type Builder struct {
	tree  *Tree
	cfg   *config.StarTreeConfig
	stats *stats.Collector
	log   *slog.Logger

	sealed bool
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithRollupThreshold folds dimension values below the given total metric
// mass into the other bucket at split time.
func WithRollupThreshold(metricName string, threshold float64) BuilderOption {
	return func(b *Builder) {
		b.tree.rollup = &RollupThreshold{MetricName: metricName, Threshold: threshold}
	}
}

// NewBuilder creates a builder over an empty tree for the given config.
func NewBuilder(cfg *config.StarTreeConfig, opts ...BuilderOption) (*Builder, error) {
	tree, err := New(cfg)
	if err != nil {
		return nil, err
	}
	b := &Builder{
		tree:  tree,
		cfg:   cfg,
		stats: stats.NewCollector(cfg.Dimensions, cfg.MetricNames()),
		log:   logging.Component("builder").With("collection", cfg.Collection),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Add ingests one record.
func (b *Builder) Add(r types.Record) error {
	if b.sealed {
		return errors.ErrSealed
	}
	if err := b.tree.Add(r); err != nil {
		return err
	}
	b.stats.Observe(r)
	return nil
}

// AddEncoded ingests one record from the dense external form: a dimension
// key carrying all dimension values in configured order, plus metric values
// and a raw timestamp.
func (b *Builder) AddEncoded(keyBytes []byte, metrics map[string]float64, time int64) error {
	key, err := types.DimensionKeyFromBytes(keyBytes)
	if err != nil {
		return errors.Wrap(err, "decode dimension key")
	}
	dimensions, err := key.ToMap(b.cfg.Dimensions)
	if err != nil {
		return errors.Wrap(err, "decode dimension key")
	}

	typeMap := make(map[string]types.MetricType, len(b.cfg.Metrics))
	for _, m := range b.cfg.Metrics {
		typeMap[m.Name] = m.Type
	}
	return b.Add(types.NewRecord(dimensions, metrics, typeMap, time))
}

// Seal injects catch-all records until the leaf set stabilizes, compacts
// the record stores, seals the dictionary, and returns the queryable tree.
// The builder is spent afterwards.
//
// The fixed point must converge because injected records carry zero metric
// mass and reuse already-present dimension tuples; a pass cap defends
// against pathological split configurations and surfaces
// ErrBuilderDidNotConverge instead of looping unbounded.
func (b *Builder) Seal() (*Tree, error) {
	if b.sealed {
		return nil, errors.ErrSealed
	}

	if err := b.injectCatchAll(); err != nil {
		return nil, err
	}

	reclaimed := b.tree.Compact()
	b.tree.Seal()
	b.sealed = true

	report := b.stats.Report(b.cfg.Dimensions, b.cfg.MetricNames())
	b.log.Info("build sealed",
		"records", report.RecordCount,
		"nodes", b.tree.NodeCount(),
		"leaves", len(b.tree.Leaves()),
		"reclaimed", reclaimed)
	for _, d := range report.Dimensions {
		b.log.Debug("dimension stats", "dimension", d.Name, "cardinality", d.Cardinality)
	}
	for _, m := range report.Metrics {
		b.log.Debug("metric stats", "metric", m.Name, "count", m.Count,
			"sum", m.Sum, "min", m.Min, "max", m.Max, "p99", m.P99)
	}

	return b.tree, nil
}

// injectCatchAll synthesizes, for every current leaf, a zero-metric record
// covering the leaf's ancestor values with the other sentinel for every
// not-yet-split dimension, and re-adds it. Adding can split a leaf and mint
// new leaves, so the pass repeats until the leaf count stops changing.
// Injection is idempotent: re-running a converged pass creates no new
// leaves and no new record groups.
func (b *Builder) injectCatchAll() error {
	for pass := 1; pass <= sentinel.MaxCatchAllPasses; pass++ {
		contexts := b.tree.LeafContexts()
		before := len(contexts)

		for _, ancestors := range contexts {
			dimensions := make(map[string]string, len(b.cfg.Dimensions))
			for _, d := range b.cfg.Dimensions {
				if v, ok := ancestors[d]; ok {
					dimensions[d] = v
				} else {
					dimensions[d] = sentinel.Other
				}
			}
			record := types.ZeroRecord(dimensions, b.cfg.MetricNames(), b.cfg.MetricTypes())
			if err := b.tree.Add(record); err != nil {
				return err
			}
		}

		after := len(b.tree.Leaves())
		b.log.Debug("catch-all pass", "pass", pass, "leaves_before", before, "leaves_after", after)
		if after == before {
			return nil
		}
	}
	return errors.Wrapf(errors.ErrBuilderDidNotConverge, "after %d passes", sentinel.MaxCatchAllPasses)
}

// Stats returns the build-time statistics collected so far.
func (b *Builder) Stats() stats.Report {
	return b.stats.Report(b.cfg.Dimensions, b.cfg.MetricNames())
}

// Tree returns the tree under construction. Callers must not query it
// before Seal.
func (b *Builder) Tree() *Tree {
	return b.tree
}
