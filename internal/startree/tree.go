package startree

import (
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	sentinel "github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/errors"
	"github.com/xtxerr/startree/internal/logging"
	"github.com/xtxerr/startree/internal/startree/config"
	"github.com/xtxerr/startree/internal/startree/dict"
	"github.com/xtxerr/startree/internal/startree/store"
	"github.com/xtxerr/startree/internal/startree/types"
)

// Tree is an assembled star-tree: the dictionary, the node graph, and the
// per-leaf record stores, governed by one immutable config.
//
// Mutation (Add) is single-threaded and happens only before Seal. After
// Seal the tree is immutable and GetAggregate is safe for unbounded
// concurrent readers.
type Tree struct {
	cfg     *config.StarTreeConfig
	dict    *dict.Dictionary
	root    *Node
	factory store.Factory

	splitOrder     []string
	splitThreshold int

	// rollup, when set, folds low-mass dimension values into the other
	// bucket at split time.
	rollup *RollupThreshold

	sealed atomic.Bool
	closed atomic.Bool

	log *slog.Logger
}

// New creates an empty, unsealed tree for the given config.
func New(cfg *config.StarTreeConfig) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory := store.NewFactory(cfg.Storage.Store, cfg.StoreCapacity(), cfg.MetricNames(), cfg.MetricTypes())
	return &Tree{
		cfg:            cfg,
		dict:           dict.New(cfg.Dimensions),
		root:           newRoot(factory),
		factory:        factory,
		splitOrder:     cfg.SplitOrder(),
		splitThreshold: cfg.SplitThreshold(),
		log:            loggerFor(cfg),
	}, nil
}

func loggerFor(cfg *config.StarTreeConfig) *slog.Logger {
	return logging.Collection(cfg.Collection)
}

// Config returns the tree's schema.
func (t *Tree) Config() *config.StarTreeConfig { return t.cfg }

// Dictionary returns the tree's forward index.
func (t *Tree) Dictionary() *dict.Dictionary { return t.dict }

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Sealed reports whether the tree has been sealed for querying.
func (t *Tree) Sealed() bool { return t.sealed.Load() }

// Add ingests one record: its time column is normalized to the bucket
// granularity, its dimension values are encoded into the dictionary, and it
// is routed into the concrete child and (as a star-relabeled copy) the star
// child at every split level until a leaf store receives it. Leaves that
// exceed the split threshold are split on the next dimension in the split
// order.
func (t *Tree) Add(r types.Record) error {
	if t.sealed.Load() {
		return errors.ErrSealed
	}
	if t.closed.Load() {
		return errors.ErrStoreClosed
	}
	for _, d := range t.cfg.Dimensions {
		if _, ok := r.Dimensions[d]; !ok {
			return errors.NewMissingField("dimension " + d)
		}
	}

	r = r.Clone()
	r.Time = t.cfg.Time.BucketTime(r.Time)
	return t.add(t.root, r, 0)
}

// add routes a record into the subtree rooted at n, where n sits at the
// given depth of the split order.
func (t *Tree) add(n *Node, r types.Record, depth int) error {
	if n.IsLeaf() {
		if err := n.store.Insert(r); err != nil {
			return err
		}
		if n.store.DistinctCount() > t.splitThreshold && depth < len(t.splitOrder) {
			return t.split(n, depth)
		}
		return nil
	}

	d := n.splitDimension
	value := r.Dimensions[d]

	if value != sentinel.Star {
		if value != sentinel.Other {
			if _, err := t.dict.Encode(d, value); err != nil {
				return err
			}
		}
		if err := t.add(n.childFor(value, t.factory), r, depth+1); err != nil {
			return err
		}
		// The star child aggregates over all values of d beneath this node.
		r = r.Relabel(d, sentinel.Star)
	}
	return t.add(n.star, r, depth+1)
}

// split converts a leaf into an internal node on the next split-order
// dimension and redistributes its records into the new children.
func (t *Tree) split(n *Node, depth int) error {
	dimension := t.splitOrder[depth]
	records := applyRollup(t.rollup, dimension, n.store.Records())
	old := n.store
	n.convert(dimension, t.factory)
	if err := old.Close(); err != nil {
		return err
	}

	t.log.Debug("leaf split", "dimension", dimension, "node", n.id, "records", len(records))

	for _, r := range records {
		if err := t.add(n, r, depth); err != nil {
			return err
		}
	}
	return nil
}

// GetAggregate answers an aggregate query against a sealed tree.
//
// The walk descends one level per split dimension: a star query value takes
// the star child; a concrete value takes its child if one exists, otherwise
// the other child with the predicate rewritten to the other sentinel, so
// missing data reads as a defined zero rather than an absent result. At the
// leaf, the residual predicate for dimensions not consumed by ancestry is
// applied within the record store scan.
func (t *Tree) GetAggregate(q types.Query) (types.Record, error) {
	if !t.sealed.Load() {
		return types.Record{}, errors.ErrNotSealed
	}
	for d := range q.DimensionValues {
		if !t.cfg.HasDimension(d) {
			return types.Record{}, errors.NewUnknownDimension(d)
		}
	}

	node := t.root
	residual := q
	for !node.IsLeaf() {
		d := node.splitDimension
		value := residual.Value(d)

		switch {
		case value == sentinel.Star:
			node = node.star
		default:
			if child, ok := node.children[value]; ok {
				node = child
				continue
			}
			// No child carries this value: it either fell into the overflow
			// bucket or was never seen. The other child's catch-all record
			// makes the result a defined zero.
			if node.other != nil {
				residual = residual.With(d, sentinel.Other)
				node = node.other
				continue
			}
			node = node.star
		}
	}

	result := node.store.Aggregate(residual)
	// Report the caller's dimension values, not the rewritten walk state.
	for d, v := range q.DimensionValues {
		result.Dimensions[d] = v
	}
	for _, d := range t.cfg.Dimensions {
		if _, ok := result.Dimensions[d]; !ok {
			result.Dimensions[d] = sentinel.Star
		}
	}
	return result, nil
}

// Leaves returns every leaf node in the tree.
func (t *Tree) Leaves() []*Node {
	var leaves []*Node
	t.root.walk(map[string]string{}, func(n *Node, _ map[string]string) bool {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
		return true
	})
	return leaves
}

// LeafContexts returns every leaf along with its ancestor dimension values
// (the concrete/star assignments of all ancestors including the leaf's own).
func (t *Tree) LeafContexts() map[*Node]map[string]string {
	out := make(map[*Node]map[string]string)
	t.root.walk(map[string]string{}, func(n *Node, ancestors map[string]string) bool {
		if n.IsLeaf() {
			out[n] = ancestors
		}
		return true
	})
	return out
}

// LeafByID locates a leaf node by identity. Used when loading persisted
// leaf data.
func (t *Tree) LeafByID(id uuid.UUID) (*Node, bool) {
	var found *Node
	t.root.walk(map[string]string{}, func(n *Node, _ map[string]string) bool {
		if n.IsLeaf() && n.id == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// NodeCount returns the total number of nodes in the tree.
func (t *Tree) NodeCount() int {
	count := 0
	t.root.walk(map[string]string{}, func(*Node, map[string]string) bool {
		count++
		return true
	})
	return count
}

// Seal marks the dictionary immutable and the tree queryable. Required
// before persistence or querying. Idempotent.
func (t *Tree) Seal() {
	t.dict.Seal()
	t.sealed.Store(true)
}

// Compact compacts every leaf's record store, merging duplicate groups and
// dropping stale slots. Returns the total entries reclaimed.
func (t *Tree) Compact() int {
	reclaimed := 0
	for _, leaf := range t.Leaves() {
		reclaimed += leaf.store.Compact()
	}
	return reclaimed
}

// Close compacts and releases every leaf's record store. The tree is
// unusable afterwards. Idempotent.
func (t *Tree) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	reclaimed := t.Compact()
	var firstErr error
	for _, leaf := range t.Leaves() {
		if err := leaf.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.log.Info("tree closed", "reclaimed", reclaimed)
	return firstErr
}
