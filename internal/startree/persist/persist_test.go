package persist

import (
	"os"
	"path/filepath"
	"testing"

	rootcfg "github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/errors"
	"github.com/xtxerr/startree/internal/startree"
	treecfg "github.com/xtxerr/startree/internal/startree/config"
	"github.com/xtxerr/startree/internal/startree/types"
)

func testConfig(collection string) *treecfg.StarTreeConfig {
	return &treecfg.StarTreeConfig{
		Collection: collection,
		Dimensions: []string{"browser", "country"},
		Metrics:    []treecfg.MetricSpec{{Name: "impressions", Type: types.MetricLong}},
		Split:      treecfg.SplitSpec{Threshold: 2},
		Storage:    treecfg.StorageSpec{Store: treecfg.StoreLog},
	}
}

func buildTree(t *testing.T, cfg *treecfg.StarTreeConfig, n int) *startree.Tree {
	t.Helper()
	b, err := startree.NewBuilder(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	browsers := []string{"chrome", "firefox", "safari"}
	countries := []string{"us", "de"}
	for i := 0; i < n; i++ {
		r := types.NewRecord(
			map[string]string{
				"browser": browsers[i%len(browsers)],
				"country": countries[i%len(countries)],
			},
			map[string]float64{"impressions": 1},
			map[string]types.MetricType{"impressions": types.MetricLong},
			int64(i),
		)
		if err := b.Add(r); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	tree, err := b.Seal()
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return tree
}

func query(t *testing.T, tree *startree.Tree, values map[string]string) float64 {
	t.Helper()
	r, err := tree.GetAggregate(types.NewQuery(values))
	if err != nil {
		t.Fatalf("query %v: %v", values, err)
	}
	return r.Metrics["impressions"]
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "aggregates")
	cfg := testConfig("aggregates")
	original := buildTree(t, cfg, 60)
	defer original.Close()

	if err := Save(original, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	// All artifacts are present.
	for _, name := range []string{"aggregates-tree.bin", rootcfg.ConfigFileName, rootcfg.LeafDataArchiveName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
	ids, err := LeafIDs(filepath.Join(dir, rootcfg.DataDirName))
	if err != nil {
		t.Fatalf("leaf ids: %v", err)
	}
	if len(ids) != len(original.Leaves()) {
		t.Errorf("expected %d leaf blobs, got %d", len(original.Leaves()), len(ids))
	}

	loaded, err := Load(dir, cfg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer loaded.Close()

	if loaded.NodeCount() != original.NodeCount() {
		t.Errorf("node count %d != %d", loaded.NodeCount(), original.NodeCount())
	}
	queries := []map[string]string{
		nil,
		{"browser": "chrome"},
		{"browser": "opera"},
		{"browser": "firefox", "country": "us"},
	}
	for _, q := range queries {
		if got, want := query(t, loaded, q), query(t, original, q); got != want {
			t.Errorf("query %v: loaded %f != original %f", q, got, want)
		}
	}
}

func TestSave_RequiresSealedTree(t *testing.T) {
	cfg := testConfig("unsealed")
	tree, err := startree.New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer tree.Close()

	if err := Save(tree, t.TempDir()); !errors.Is(err, errors.ErrNotSealed) {
		t.Errorf("expected ErrNotSealed, got %v", err)
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), testConfig("nope"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoad_ConfigMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "aggregates")
	cfg := testConfig("aggregates")
	tree := buildTree(t, cfg, 10)
	defer tree.Close()
	if err := Save(tree, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	other := testConfig("aggregates")
	other.Dimensions = []string{"browser", "country", "extra"}
	if _, err := Load(dir, other); !errors.Is(err, errors.ErrConfigMismatch) {
		t.Errorf("expected ErrConfigMismatch, got %v", err)
	}
}

func TestLoad_CorruptTreeFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "aggregates")
	cfg := testConfig("aggregates")
	tree := buildTree(t, cfg, 10)
	defer tree.Close()
	if err := Save(tree, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, cfg.TreeFileName()), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, cfg); !errors.Is(err, errors.ErrCorruptState) {
		t.Errorf("expected ErrCorruptState, got %v", err)
	}
}

func TestRestore_RepairsDataDirFromArchive(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "aggregates")
	cfg := testConfig("aggregates")
	tree := buildTree(t, cfg, 30)
	defer tree.Close()
	if err := Save(tree, srcDir); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Lose the data dir; the archive must bring it back at the destination.
	if err := os.RemoveAll(filepath.Join(srcDir, rootcfg.DataDirName)); err != nil {
		t.Fatal(err)
	}

	destDir := filepath.Join(t.TempDir(), "restored")
	if err := Restore(srcDir, destDir, cfg); err != nil {
		t.Fatalf("restore: %v", err)
	}

	loaded, err := Load(destDir, cfg)
	if err != nil {
		t.Fatalf("load restored: %v", err)
	}
	defer loaded.Close()
	if got := query(t, loaded, nil); got != 30 {
		t.Errorf("restored total: expected 30, got %f", got)
	}
}

func TestRestore_MissingEverythingIsCorrupt(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "empty")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	err := Restore(srcDir, filepath.Join(t.TempDir(), "dest"), testConfig("empty"))
	if !errors.Is(err, errors.ErrCorruptState) {
		t.Errorf("expected ErrCorruptState, got %v", err)
	}
}

func TestLeafBuffer_EmptyLeafRoundTrips(t *testing.T) {
	cfg := testConfig("empty-leaf")
	path := filepath.Join(t.TempDir(), "leaf.parquet")

	if err := writeLeafBuffer(path, cfg, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	records, err := readLeafBuffer(path, cfg)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
