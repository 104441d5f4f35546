package store

import (
	"iter"
	"sync"

	"github.com/xtxerr/startree/internal/errors"
	"github.com/xtxerr/startree/internal/startree/types"
)

// Log is an append-only record store that keeps every inserted record.
// It is the reference "raw" policy used during builds, where the builder
// needs the original records back to redistribute them on a split.
type Log struct {
	mu      sync.RWMutex
	records []types.Record
	groups  map[string]int
	closed  bool

	metricNames []string
	metricTypes []types.MetricType
}

// NewLog creates an empty log store.
func NewLog(metricNames []string, metricTypes []types.MetricType) *Log {
	return &Log{
		groups:      make(map[string]int),
		metricNames: metricNames,
		metricTypes: metricTypes,
	}
}

// Insert appends the record.
func (l *Log) Insert(r types.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.ErrStoreClosed
	}
	l.records = append(l.records, r.Clone())
	l.groups[r.GroupKey()]++
	return nil
}

// Scan returns stored records matching the query in insertion order.
func (l *Log) Scan(q types.Query) iter.Seq[types.Record] {
	return func(yield func(types.Record) bool) {
		l.mu.RLock()
		defer l.mu.RUnlock()

		for i := range l.records {
			if !q.Matches(l.records[i]) {
				continue
			}
			if !yield(l.records[i].Clone()) {
				return
			}
		}
	}
}

// Aggregate folds all matching records' metrics.
func (l *Log) Aggregate(q types.Query) types.Record {
	return aggregate(q, l.metricNames, l.metricTypes, l.Scan(q))
}

// Len returns the number of stored records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// DistinctCount returns the number of distinct record groups.
func (l *Log) DistinctCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.groups)
}

// Records returns a snapshot of all stored records.
func (l *Log) Records() []types.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.Record, len(l.records))
	for i := range l.records {
		out[i] = l.records[i].Clone()
	}
	return out
}

// Compact merges records with identical dimension tuples into one entry per
// group. Returns the number of records reclaimed.
func (l *Log) Compact() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) == len(l.groups) {
		return 0
	}

	merged := make([]types.Record, 0, len(l.groups))
	index := make(map[string]int, len(l.groups))
	for i := range l.records {
		key := l.records[i].GroupKey()
		if at, ok := index[key]; ok {
			merged[at] = merged[at].MergeMetrics(l.records[i])
			continue
		}
		index[key] = len(merged)
		merged = append(merged, l.records[i])
	}

	reclaimed := len(l.records) - len(merged)
	l.records = merged
	l.groups = make(map[string]int, len(merged))
	for i := range merged {
		l.groups[merged[i].GroupKey()]++
	}
	return reclaimed
}

// Close releases the store. Idempotent.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.records = nil
	l.groups = nil
	return nil
}
