package startree

import (
	"fmt"

	"github.com/google/uuid"

	sentinel "github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/startree/config"
	"github.com/xtxerr/startree/internal/startree/dict"
	"github.com/xtxerr/startree/internal/startree/store"
)

// NodeSnapshot is the persistable form of one node: identity, the split
// edge that produced it, and child edges keyed by dictionary id. Together
// with the config and the dictionary it is sufficient to reconstruct the
// full hierarchy without the original records.
type NodeSnapshot struct {
	ID             uuid.UUID           `cbor:"1,keyasint"`
	Dimension      string              `cbor:"2,keyasint"`
	Value          string              `cbor:"3,keyasint"`
	SplitDimension string              `cbor:"4,keyasint,omitempty"`
	Children       map[int32]uuid.UUID `cbor:"5,keyasint,omitempty"`
	Star           uuid.UUID           `cbor:"6,keyasint,omitempty"`
	Other          uuid.UUID           `cbor:"7,keyasint,omitempty"`
}

// Snapshot flattens the node graph, root first. Every concrete child value
// is encoded into the dictionary during Add, so a value without an id marks
// a corrupted tree.
func (t *Tree) Snapshot() ([]NodeSnapshot, error) {
	var out []NodeSnapshot
	var snapErr error
	t.root.walk(map[string]string{}, func(n *Node, _ map[string]string) bool {
		snap := NodeSnapshot{
			ID:             n.id,
			Dimension:      n.dimension,
			Value:          n.value,
			SplitDimension: n.splitDimension,
		}
		if !n.IsLeaf() {
			snap.Children = make(map[int32]uuid.UUID, len(n.children))
			for v, c := range n.children {
				id, err := t.dict.IDOf(n.splitDimension, v)
				if err != nil {
					snapErr = err
					return false
				}
				if id < sentinel.FirstValue {
					snapErr = fmt.Errorf("no dictionary id for %s=%s", n.splitDimension, v)
					return false
				}
				snap.Children[id] = c.id
			}
			snap.Star = n.star.id
			snap.Other = n.other.id
		}
		out = append(out, snap)
		return true
	})
	if snapErr != nil {
		return nil, snapErr
	}
	return out, nil
}

// FromSnapshot reconstructs a sealed tree from persisted node snapshots and
// a restored dictionary. Leaf record stores come back empty; the persistence
// layer fills them from the leaf data blobs.
func FromSnapshot(cfg *config.StarTreeConfig, snaps []NodeSnapshot, d *dict.Dictionary) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("empty node snapshot")
	}

	factory := store.NewFactory(cfg.Storage.Store, cfg.StoreCapacity(), cfg.MetricNames(), cfg.MetricTypes())

	nodes := make(map[uuid.UUID]*Node, len(snaps))
	for _, s := range snaps {
		n := &Node{
			id:             s.ID,
			dimension:      s.Dimension,
			value:          s.Value,
			splitDimension: s.SplitDimension,
		}
		if s.SplitDimension == "" {
			n.store = factory()
		}
		if _, dup := nodes[s.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %s", s.ID)
		}
		nodes[s.ID] = n
	}

	resolve := func(id uuid.UUID) (*Node, error) {
		n, ok := nodes[id]
		if !ok {
			return nil, fmt.Errorf("dangling edge to node %s", id)
		}
		return n, nil
	}

	for _, s := range snaps {
		if s.SplitDimension == "" {
			continue
		}
		n := nodes[s.ID]
		n.children = make(map[string]*Node, len(s.Children))
		for cid, nid := range s.Children {
			v, ok := d.ValueOf(s.SplitDimension, cid)
			if !ok {
				return nil, fmt.Errorf("unknown dictionary id %d for dimension %s", cid, s.SplitDimension)
			}
			c, err := resolve(nid)
			if err != nil {
				return nil, err
			}
			n.children[v] = c
		}
		var err error
		if n.star, err = resolve(s.Star); err != nil {
			return nil, err
		}
		if n.other, err = resolve(s.Other); err != nil {
			return nil, err
		}
	}

	root, ok := nodes[snaps[0].ID]
	if !ok {
		return nil, fmt.Errorf("missing root node")
	}

	t := &Tree{
		cfg:            cfg,
		dict:           d,
		root:           root,
		factory:        factory,
		splitOrder:     cfg.SplitOrder(),
		splitThreshold: cfg.SplitThreshold(),
		log:            loggerFor(cfg),
	}
	t.sealed.Store(true)
	return t, nil
}
