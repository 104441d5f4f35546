package startree

import (
	"testing"

	"github.com/google/uuid"

	sentinel "github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/startree/dict"
)

func TestSnapshot_RoundTripStructure(t *testing.T) {
	original := buildTree(t, "snapround", 1, 100)

	snaps, err := original.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snaps) != original.NodeCount() {
		t.Fatalf("snapshot has %d nodes, tree has %d", len(snaps), original.NodeCount())
	}
	if snaps[0].ID != original.Root().ID() {
		t.Error("snapshot must be root-first")
	}

	restored, err := FromSnapshot(original.Config(), snaps, dict.Restore(original.Dictionary().Snapshot()))
	if err != nil {
		t.Fatalf("from snapshot: %v", err)
	}
	defer restored.Close()

	if !restored.Sealed() {
		t.Error("restored tree must be sealed")
	}
	if restored.NodeCount() != original.NodeCount() {
		t.Errorf("node count %d != %d", restored.NodeCount(), original.NodeCount())
	}
	if len(restored.Leaves()) != len(original.Leaves()) {
		t.Errorf("leaf count %d != %d", len(restored.Leaves()), len(original.Leaves()))
	}
	if restored.Root().SplitDimension() != original.Root().SplitDimension() {
		t.Errorf("root split dimension %s != %s",
			restored.Root().SplitDimension(), original.Root().SplitDimension())
	}
}

func TestSnapshot_RefilledTreeAnswersSameQueries(t *testing.T) {
	original := buildTree(t, "snapfill", 1, 100)

	snaps, err := original.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	restored, err := FromSnapshot(original.Config(), snaps,
		dict.Restore(original.Dictionary().Snapshot()))
	if err != nil {
		t.Fatalf("from snapshot: %v", err)
	}
	defer restored.Close()

	// Refill each restored leaf from its counterpart, matched by identity.
	for _, leaf := range original.Leaves() {
		target, ok := restored.LeafByID(leaf.ID())
		if !ok {
			t.Fatalf("restored tree misses leaf %s", leaf.ID())
		}
		for _, r := range leaf.Store().Records() {
			if err := target.Store().Insert(r); err != nil {
				t.Fatalf("refill: %v", err)
			}
		}
	}

	queries := []map[string]string{
		nil,
		{"browser": "chrome"},
		{"browser": "firefox", "country": "us"},
		{"browser": "opera"},
		{"country": "de", "locale": "en"},
	}
	for _, q := range queries {
		want := getMetric(t, original, q)
		got := getMetric(t, restored, q)
		if got != want {
			t.Errorf("query %v: restored %f != original %f", q, got, want)
		}
	}
}

func TestFromSnapshot_RejectsDamage(t *testing.T) {
	tree := buildTree(t, "snapdamage", 1, 50)
	cfg := tree.Config()
	d := dict.Restore(tree.Dictionary().Snapshot())

	if _, err := FromSnapshot(cfg, nil, d); err == nil {
		t.Error("empty snapshot should be rejected")
	}

	snaps, err := tree.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	dup := append([]NodeSnapshot{}, snaps...)
	dup = append(dup, snaps[0])
	if _, err := FromSnapshot(cfg, dup, d); err == nil {
		t.Error("duplicate node id should be rejected")
	}

	dangling := append([]NodeSnapshot{}, snaps...)
	dangling[0].Star = uuid.New()
	if _, err := FromSnapshot(cfg, dangling, d); err == nil {
		t.Error("dangling star edge should be rejected")
	}
}

func TestSnapshot_ChildEdgesKeyedByDictionaryID(t *testing.T) {
	tree := buildTree(t, "snapids", 1, 50)

	snaps, err := tree.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	edges := 0
	for _, s := range snaps {
		for id := range s.Children {
			edges++
			if id < sentinel.FirstValue {
				t.Errorf("node %s: concrete child edge carries sentinel id %d", s.ID, id)
			}
			if _, ok := tree.Dictionary().ValueOf(s.SplitDimension, id); !ok {
				t.Errorf("node %s: child edge id %d has no dictionary value for %s",
					s.ID, id, s.SplitDimension)
			}
		}
	}
	if edges == 0 {
		t.Fatal("split tree snapshot should carry concrete child edges")
	}
}

func TestSnapshot_LeafRecordsCarryDictionaryValues(t *testing.T) {
	tree := buildTree(t, "snapdict", 1, 50)

	// Every concrete dimension value stored in a leaf must have its own
	// dictionary id; persistence depends on this.
	for _, leaf := range tree.Leaves() {
		for _, r := range leaf.Store().Records() {
			for dim, v := range r.Dimensions {
				if v == sentinel.Star || v == sentinel.Other {
					continue
				}
				id, err := tree.Dictionary().IDOf(dim, v)
				if err != nil {
					t.Fatalf("leaf %s: value %s=%s not in dictionary: %v", leaf.ID(), dim, v, err)
				}
				if id < sentinel.FirstValue {
					t.Fatalf("leaf %s: concrete value %s=%s resolved to sentinel id %d",
						leaf.ID(), dim, v, id)
				}
			}
		}
	}
}
