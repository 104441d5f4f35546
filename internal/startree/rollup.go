package startree

import (
	sentinel "github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/startree/types"
)

// RollupThreshold routes low-mass dimension values into the other bucket at
// split time: when a leaf splits, any distinct value of the split dimension
// whose total for the named metric falls below the threshold is relabeled to
// the other sentinel instead of receiving its own child. This keeps the fan
// out of a split proportional to the values that actually carry signal.
//
// A nil RollupThreshold disables rollup; every value gets its own child.
type RollupThreshold struct {
	// MetricName is the metric whose per-value total decides the rollup.
	MetricName string

	// Threshold is the minimum total required to stay out of the other
	// bucket.
	Threshold float64
}

// aboveThreshold reports whether the value's accumulated metric total is
// large enough to keep its own child.
func (rt *RollupThreshold) aboveThreshold(total float64) bool {
	return total >= rt.Threshold
}

// applyRollup relabels the split dimension of records whose value carries
// less than the threshold's metric mass. Returns the records to
// redistribute.
func applyRollup(rt *RollupThreshold, dimension string, records []types.Record) []types.Record {
	if rt == nil {
		return records
	}

	totals := make(map[string]float64)
	for _, r := range records {
		totals[r.Dimensions[dimension]] += r.Metrics[rt.MetricName]
	}

	out := make([]types.Record, len(records))
	for i, r := range records {
		value := r.Dimensions[dimension]
		if value != sentinel.Star && value != sentinel.Other && !rt.aboveThreshold(totals[value]) {
			r = r.Relabel(dimension, sentinel.Other)
		}
		out[i] = r
	}
	return out
}
