// Package types defines the data model shared by the startree builder,
// record stores, and query path.
package types

import (
	"sort"
	"strings"

	"github.com/xtxerr/startree/config"
)

// MetricType declares how a metric's values are represented and merged.
type MetricType string

const (
	MetricInt    MetricType = "INT"
	MetricLong   MetricType = "LONG"
	MetricFloat  MetricType = "FLOAT"
	MetricDouble MetricType = "DOUBLE"
)

// Valid returns true for a known metric type.
func (t MetricType) Valid() bool {
	switch t {
	case MetricInt, MetricLong, MetricFloat, MetricDouble:
		return true
	default:
		return false
	}
}

// Integral returns true if values of this type are whole numbers.
func (t MetricType) Integral() bool {
	return t == MetricInt || t == MetricLong
}

// Record is one dimensional data point flowing through the tree: a value for
// every configured dimension, a value for every configured metric, and a
// bucketed timestamp.
//
// Records are treated as immutable once handed to the tree. Methods that
// derive a variant (Relabel, WithZeroMetrics) return a deep copy and never
// touch the receiver.
type Record struct {
	Dimensions  map[string]string
	Metrics     map[string]float64
	MetricTypes map[string]MetricType
	Time        int64
}

// NewRecord creates a record from its parts. The maps are copied so callers
// may reuse theirs.
func NewRecord(dimensions map[string]string, metrics map[string]float64, metricTypes map[string]MetricType, time int64) Record {
	return Record{
		Dimensions:  copyStringMap(dimensions),
		Metrics:     copyFloatMap(metrics),
		MetricTypes: copyTypeMap(metricTypes),
		Time:        time,
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return NewRecord(r.Dimensions, r.Metrics, r.MetricTypes, r.Time)
}

// Relabel returns a copy with one dimension replaced by the given value.
// The builder uses this to produce the star-child copy of a record.
func (r Record) Relabel(dimension, value string) Record {
	out := r.Clone()
	out.Dimensions[dimension] = value
	return out
}

// WithZeroMetrics returns a copy whose metric values are all zero. Catch-all
// records are derived this way so they add structure without metric mass.
func (r Record) WithZeroMetrics() Record {
	out := r.Clone()
	for name := range out.Metrics {
		out.Metrics[name] = 0
	}
	return out
}

// GroupKey returns a canonical key for the record's dimension tuple.
// Records with equal keys belong to the same record group.
func (r Record) GroupKey() string {
	names := make([]string, 0, len(r.Dimensions))
	for name := range r.Dimensions {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\x1e')
		}
		b.WriteString(name)
		b.WriteByte('\x1f')
		b.WriteString(r.Dimensions[name])
	}
	return b.String()
}

// IsStar returns true if the record carries the wildcard value for the
// given dimension.
func (r Record) IsStar(dimension string) bool {
	return r.Dimensions[dimension] == config.Star
}

// MergeMetrics folds the other record's metric values into this record's,
// using each metric's declared aggregation (sum). The receiver's timestamp
// advances to the later of the two. Returns the merged copy.
func (r Record) MergeMetrics(other Record) Record {
	out := r.Clone()
	for name, value := range other.Metrics {
		out.Metrics[name] += value
	}
	if other.Time > out.Time {
		out.Time = other.Time
	}
	return out
}

// ZeroRecord returns a record with the given dimension values, every metric
// zero, and time zero. Used for catch-all injection and empty aggregates.
func ZeroRecord(dimensions map[string]string, metricNames []string, metricTypes []MetricType) Record {
	metrics := make(map[string]float64, len(metricNames))
	typeMap := make(map[string]MetricType, len(metricNames))
	for i, name := range metricNames {
		metrics[name] = 0
		typeMap[name] = metricTypes[i]
	}
	return Record{
		Dimensions:  copyStringMap(dimensions),
		Metrics:     metrics,
		MetricTypes: typeMap,
	}
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFloatMap(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyTypeMap(in map[string]MetricType) map[string]MetricType {
	out := make(map[string]MetricType, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
