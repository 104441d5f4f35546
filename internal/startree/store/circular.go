package store

import (
	"iter"
	"sync"
	"sync/atomic"

	"github.com/xtxerr/startree/internal/errors"
	"github.com/xtxerr/startree/internal/startree/types"
)

// Circular is a fixed-capacity record store that merges records whose
// dimension tuples are identical and evicts the least-recently-inserted
// entry when full. Every held entry is therefore a distinct record group.
//
// It uses a simple mutex-based approach for correctness; post-seal the tree
// is immutable and reads contend only on the RLock.
type Circular struct {
	mu       sync.RWMutex
	data     []slot
	head     int64 // Next write position
	tail     int64 // Oldest entry position
	count    int64
	capacity int64
	closed   bool

	metricNames []string
	metricTypes []types.MetricType

	// Statistics
	insertCount atomic.Int64
	mergeCount  atomic.Int64
	evictCount  atomic.Int64
}

type slot struct {
	key    string
	record types.Record
	used   bool
}

// NewCircular creates a circular store with the given slot capacity.
func NewCircular(capacity int, metricNames []string, metricTypes []types.MetricType) *Circular {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Circular{
		data:        make([]slot, capacity),
		capacity:    int64(capacity),
		metricNames: metricNames,
		metricTypes: metricTypes,
	}
}

// Insert merges the record into an existing entry with the same dimension
// tuple, or appends it, evicting the oldest entry if the store is full.
func (c *Circular) Insert(r types.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrStoreClosed
	}

	key := r.GroupKey()
	for i := int64(0); i < c.count; i++ {
		idx := (c.tail + i) % c.capacity
		if c.data[idx].used && c.data[idx].key == key {
			c.data[idx].record = c.data[idx].record.MergeMetrics(r)
			c.mergeCount.Add(1)
			return nil
		}
	}

	if c.count >= c.capacity {
		// Evict oldest
		idx := c.tail % c.capacity
		c.data[idx] = slot{}
		c.tail++
		c.count--
		c.evictCount.Add(1)
	}

	idx := c.head % c.capacity
	c.data[idx] = slot{key: key, record: r.Clone(), used: true}
	c.head++
	c.count++
	c.insertCount.Add(1)
	return nil
}

// Scan returns the stored records matching the query, oldest first.
func (c *Circular) Scan(q types.Query) iter.Seq[types.Record] {
	return func(yield func(types.Record) bool) {
		c.mu.RLock()
		defer c.mu.RUnlock()

		for i := int64(0); i < c.count; i++ {
			idx := (c.tail + i) % c.capacity
			if !c.data[idx].used {
				continue
			}
			if !q.Matches(c.data[idx].record) {
				continue
			}
			if !yield(c.data[idx].record.Clone()) {
				return
			}
		}
	}
}

// Aggregate folds all matching records' metrics.
func (c *Circular) Aggregate(q types.Query) types.Record {
	return aggregate(q, c.metricNames, c.metricTypes, c.Scan(q))
}

// Len returns the number of stored entries.
func (c *Circular) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int(c.count)
}

// DistinctCount equals Len: merging on insert keeps one entry per group.
func (c *Circular) DistinctCount() int {
	return c.Len()
}

// Records returns a snapshot of all stored records, oldest first.
func (c *Circular) Records() []types.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Record, 0, c.count)
	for i := int64(0); i < c.count; i++ {
		idx := (c.tail + i) % c.capacity
		if c.data[idx].used {
			out = append(out, c.data[idx].record.Clone())
		}
	}
	return out
}

// Compact rewrites the ring so entries are contiguous from slot zero and
// drops stale slots left behind by eviction wraparound.
func (c *Circular) Compact() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := make([]slot, 0, c.count)
	for i := int64(0); i < c.count; i++ {
		idx := (c.tail + i) % c.capacity
		if c.data[idx].used {
			live = append(live, c.data[idx])
		}
	}

	reclaimed := int(c.count) - len(live)
	fresh := make([]slot, c.capacity)
	copy(fresh, live)
	c.data = fresh
	c.tail = 0
	c.head = int64(len(live))
	c.count = int64(len(live))
	return reclaimed
}

// Close releases the store. Idempotent.
func (c *Circular) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.data = nil
	c.count = 0
	c.head = 0
	c.tail = 0
	return nil
}

// Stats returns store statistics.
func (c *Circular) Stats() CircularStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CircularStats{
		Capacity:    int(c.capacity),
		Count:       int(c.count),
		InsertCount: c.insertCount.Load(),
		MergeCount:  c.mergeCount.Load(),
		EvictCount:  c.evictCount.Load(),
	}
}

// CircularStats holds circular store statistics.
type CircularStats struct {
	Capacity    int
	Count       int
	InsertCount int64
	MergeCount  int64
	EvictCount  int64
}
