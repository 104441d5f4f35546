// Package dict implements the per-dimension forward index: a bidirectional
// mapping between dimension value strings and dense integer ids.
//
// Ids 0 and 1 are reserved for the Star and Other sentinels; concrete values
// are assigned sequentially from FirstValue. Once a tree is sealed the
// dictionary is immutable and lookups of unknown values resolve to Other.
package dict

import (
	"math"
	"sync"

	"github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/errors"
)

// Dictionary maps dimension value strings to dense ids, per dimension.
//
// Safe for concurrent readers after Seal; encoding during a build is
// single-writer (the builder feeds records sequentially).
type Dictionary struct {
	mu      sync.RWMutex
	forward map[string]map[string]int32
	reverse map[string]map[int32]string
	next    map[string]int32
	sealed  bool
}

// Snapshot is the persisted form of a dictionary: per-dimension value→id,
// including the sentinel entries.
type Snapshot map[string]map[string]int32

// New creates an empty dictionary covering the given dimensions.
func New(dimensions []string) *Dictionary {
	d := &Dictionary{
		forward: make(map[string]map[string]int32, len(dimensions)),
		reverse: make(map[string]map[int32]string, len(dimensions)),
		next:    make(map[string]int32, len(dimensions)),
	}
	for _, dim := range dimensions {
		d.init(dim)
	}
	return d
}

func (d *Dictionary) init(dimension string) {
	fwd := map[string]int32{
		config.Star:  config.StarValue,
		config.Other: config.OtherValue,
	}
	rev := map[int32]string{
		config.StarValue:  config.Star,
		config.OtherValue: config.Other,
	}
	d.forward[dimension] = fwd
	d.reverse[dimension] = rev
	d.next[dimension] = config.FirstValue
}

// Encode returns the id for a value, allocating the next sequential id if
// the value is new. Fails with ErrSealed after Seal and with
// ErrCapacityExceeded if the dimension's id space is exhausted.
func (d *Dictionary) Encode(dimension, value string) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fwd, ok := d.forward[dimension]
	if !ok {
		return 0, errors.NewUnknownDimension(dimension)
	}
	if id, ok := fwd[value]; ok {
		return id, nil
	}
	if d.sealed {
		return 0, errors.Wrapf(errors.ErrSealed, "encode %s=%s", dimension, value)
	}

	id := d.next[dimension]
	if id == math.MaxInt32 {
		return 0, errors.Wrapf(errors.ErrCapacityExceeded, "dimension %s", dimension)
	}
	fwd[value] = id
	d.reverse[dimension][id] = value
	d.next[dimension] = id + 1
	return id, nil
}

// IDOf looks up a value's id without allocating. In a sealed dictionary an
// unknown value resolves to OtherValue; in an unsealed one it allocates as
// Encode does.
func (d *Dictionary) IDOf(dimension, value string) (int32, error) {
	d.mu.RLock()
	fwd, ok := d.forward[dimension]
	if !ok {
		d.mu.RUnlock()
		return 0, errors.NewUnknownDimension(dimension)
	}
	if id, ok := fwd[value]; ok {
		d.mu.RUnlock()
		return id, nil
	}
	sealed := d.sealed
	d.mu.RUnlock()

	if sealed {
		return config.OtherValue, nil
	}
	return d.Encode(dimension, value)
}

// ValueOf is the reverse lookup.
func (d *Dictionary) ValueOf(dimension string, id int32) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rev, ok := d.reverse[dimension]
	if !ok {
		return "", false
	}
	v, ok := rev[id]
	return v, ok
}

// Cardinality returns the number of concrete values seen for a dimension,
// excluding the sentinels.
func (d *Dictionary) Cardinality(dimension string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fwd, ok := d.forward[dimension]
	if !ok {
		return 0
	}
	return len(fwd) - 2
}

// Seal marks the dictionary immutable. Idempotent.
func (d *Dictionary) Seal() {
	d.mu.Lock()
	d.sealed = true
	d.mu.Unlock()
}

// Sealed reports whether the dictionary has been sealed.
func (d *Dictionary) Sealed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sealed
}

// Snapshot returns a deep copy of the forward index for persistence.
func (d *Dictionary) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(Snapshot, len(d.forward))
	for dim, fwd := range d.forward {
		m := make(map[string]int32, len(fwd))
		for v, id := range fwd {
			m[v] = id
		}
		out[dim] = m
	}
	return out
}

// Restore rebuilds a sealed dictionary from a persisted snapshot.
func Restore(snap Snapshot) *Dictionary {
	d := &Dictionary{
		forward: make(map[string]map[string]int32, len(snap)),
		reverse: make(map[string]map[int32]string, len(snap)),
		next:    make(map[string]int32, len(snap)),
		sealed:  true,
	}
	for dim, fwd := range snap {
		d.forward[dim] = make(map[string]int32, len(fwd))
		d.reverse[dim] = make(map[int32]string, len(fwd))
		next := config.FirstValue
		for v, id := range fwd {
			d.forward[dim][v] = id
			d.reverse[dim][id] = v
			if id >= next {
				next = id + 1
			}
		}
		d.next[dim] = next
	}
	return d
}
