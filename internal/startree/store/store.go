// Package store provides the record storage backing a star-tree leaf.
//
// A RecordStore owns the records of exactly one leaf node. Two policies
// exist: a log store that keeps every inserted record, and a circular store
// that merges records with identical dimension tuples and evicts the oldest
// entry when full. Which one a tree uses is selected by the collection
// config and resolved through a Factory.
package store

import (
	"iter"

	"github.com/xtxerr/startree/internal/startree/types"
)

// RecordStore is the capability interface a leaf requires of its storage.
//
// Insert mutates only the owning leaf's storage; there are no cross-leaf
// effects. Scan and Aggregate see the store as of the call.
type RecordStore interface {
	// Insert appends or merges a record.
	Insert(r types.Record) error

	// Scan produces a lazy, restartable sequence of stored records matching
	// the per-dimension predicate.
	Scan(q types.Query) iter.Seq[types.Record]

	// Aggregate folds all matching records' metric values using each
	// metric's aggregation function. Returns a zero-valued record when
	// nothing matches.
	Aggregate(q types.Query) types.Record

	// Len returns the number of stored entries.
	Len() int

	// DistinctCount returns the number of distinct record groups held.
	// The builder's split policy is driven by this, not by Len.
	DistinctCount() int

	// Records returns a snapshot of all stored records. The builder uses
	// this to redistribute a leaf's records when it splits.
	Records() []types.Record

	// Compact merges duplicate record groups and releases slack. Returns
	// the number of entries reclaimed. Called when a tree closes.
	Compact() int

	// Close releases the store's resources. Further inserts fail.
	Close() error
}

// Factory creates the record store for a new leaf.
type Factory func() RecordStore

// NewFactory returns a factory for the given variant name ("circular" or
// "log"). Metric schema is threaded through so empty aggregates carry the
// right zero metrics.
func NewFactory(variant string, capacity int, metricNames []string, metricTypes []types.MetricType) Factory {
	switch variant {
	case "log":
		return func() RecordStore {
			return NewLog(metricNames, metricTypes)
		}
	default:
		return func() RecordStore {
			return NewCircular(capacity, metricNames, metricTypes)
		}
	}
}

// aggregate folds a record sequence under a query predicate. Shared by both
// store implementations.
func aggregate(q types.Query, metricNames []string, metricTypes []types.MetricType, records iter.Seq[types.Record]) types.Record {
	result := types.ZeroRecord(q.DimensionValues, metricNames, metricTypes)
	for r := range records {
		result = result.MergeMetrics(r)
	}
	return result
}
