// Package startree implements the star-tree roll-up index: a dimension-split
// hierarchy whose internal nodes retain a STAR child pre-aggregating all
// values of the split dimension, so wildcard queries are answered in
// O(tree depth) instead of O(raw records).
package startree

import (
	"github.com/google/uuid"

	"github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/startree/store"
)

// Node is one node of the dimension-split hierarchy.
//
// A node either has been split on a dimension (splitDimension set, children
// present, always including a star child and an other child) or is a leaf
// owning exactly one record store. The root represents the star value of a
// synthetic root dimension.
//
// The tree root exclusively owns the node graph. Ancestor dimension values
// are threaded as context during traversal rather than stored on the node,
// keeping the structure a strict ownership tree.
type Node struct {
	id uuid.UUID

	// dimension/value this node was created for. The root carries the
	// star sentinel for both.
	dimension string
	value     string

	// splitDimension is the dimension this node's children partition.
	// Empty for leaves.
	splitDimension string
	children       map[string]*Node
	star           *Node
	other          *Node

	// store backs leaf nodes only.
	store store.RecordStore
}

// newNode creates a leaf node for the given dimension value.
func newNode(dimension, value string, factory store.Factory) *Node {
	return &Node{
		id:        uuid.New(),
		dimension: dimension,
		value:     value,
		store:     factory(),
	}
}

// newRoot creates the root leaf.
func newRoot(factory store.Factory) *Node {
	return newNode(config.Star, config.Star, factory)
}

// ID returns the node's opaque identity.
func (n *Node) ID() uuid.UUID { return n.id }

// DimensionName returns the dimension this node represents a value of.
func (n *Node) DimensionName() string { return n.dimension }

// DimensionValue returns the dimension value this node represents.
func (n *Node) DimensionValue() string { return n.value }

// SplitDimension returns the dimension this node's children partition, or
// the empty string for a leaf.
func (n *Node) SplitDimension() string { return n.splitDimension }

// IsLeaf reports whether the node owns a record store instead of children.
func (n *Node) IsLeaf() bool { return n.splitDimension == "" }

// Store returns the leaf's record store, or nil for internal nodes.
func (n *Node) Store() store.RecordStore { return n.store }

// StarChild returns the star child, or nil for a leaf.
func (n *Node) StarChild() *Node { return n.star }

// OtherChild returns the other child, or nil for a leaf.
func (n *Node) OtherChild() *Node { return n.other }

// Child returns the child for a concrete dimension value, if present.
func (n *Node) Child(value string) (*Node, bool) {
	c, ok := n.children[value]
	return c, ok
}

// ChildValues returns the concrete dimension values this node has children
// for, in no particular order.
func (n *Node) ChildValues() []string {
	out := make([]string, 0, len(n.children))
	for v := range n.children {
		out = append(out, v)
	}
	return out
}

// childFor resolves the child a record value routes to, creating concrete
// children on demand. The star sentinel routes to the star child, the other
// sentinel to the other child.
func (n *Node) childFor(value string, factory store.Factory) *Node {
	switch value {
	case config.Star:
		return n.star
	case config.Other:
		return n.other
	default:
		if c, ok := n.children[value]; ok {
			return c
		}
		c := newNode(n.splitDimension, value, factory)
		n.children[value] = c
		return c
	}
}

// convert turns this leaf into an internal node split on the given
// dimension. The caller redistributes the old store's records.
func (n *Node) convert(dimension string, factory store.Factory) {
	n.splitDimension = dimension
	n.children = make(map[string]*Node)
	n.star = newNode(dimension, config.Star, factory)
	n.other = newNode(dimension, config.Other, factory)
	n.store = nil
}

// walk visits the subtree rooted at n depth-first, threading the ancestor
// dimension values (including each visited node's own dimension value, for
// non-root nodes). The visit callback returns false to stop early.
func (n *Node) walk(ancestors map[string]string, visit func(n *Node, ancestors map[string]string) bool) bool {
	path := ancestors
	if n.dimension != config.Star || n.value != config.Star || len(ancestors) > 0 {
		// Non-root: this node's own assignment joins the context.
		path = make(map[string]string, len(ancestors)+1)
		for k, v := range ancestors {
			path[k] = v
		}
		path[n.dimension] = n.value
	}

	if !visit(n, path) {
		return false
	}
	for _, c := range n.children {
		if !c.walk(path, visit) {
			return false
		}
	}
	if n.star != nil {
		if !n.star.walk(path, visit) {
			return false
		}
	}
	if n.other != nil {
		if !n.other.walk(path, visit) {
			return false
		}
	}
	return true
}
