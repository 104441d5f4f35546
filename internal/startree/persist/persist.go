// Package persist reads and writes the on-disk form of a star-tree.
//
// A persisted collection directory contains:
//
//	<collection>-tree.bin   node graph, CBOR
//	config.yaml             the StarTreeConfig schema
//	data/<node-id>.parquet  record store contents, one blob per leaf
//	data/<node-id>.idx      forward index snapshot, CBOR, one per leaf
//	leaf-data.tar.gz        compressed archive of data/ for bulk transfer
//
// The tree file and the dictionary snapshots are enough to reconstruct the
// hierarchy without the original records; the parquet blobs refill the leaf
// record stores.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/errors"
	"github.com/xtxerr/startree/internal/logging"
	"github.com/xtxerr/startree/internal/startree"
	treecfg "github.com/xtxerr/startree/internal/startree/config"
	"github.com/xtxerr/startree/internal/startree/dict"
)

var log = logging.Component("persist")

// Save writes all artifacts of a sealed tree under dir: tree file, config,
// per-leaf data blobs, and the leaf-data archive.
func Save(tree *startree.Tree, dir string) error {
	if !tree.Sealed() {
		return errors.ErrNotSealed
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create collection dir: %w", err)
	}

	cfg := tree.Config()
	if err := SaveTree(tree, dir); err != nil {
		return err
	}
	if err := cfg.Save(filepath.Join(dir, config.ConfigFileName)); err != nil {
		return err
	}

	dataDir := filepath.Join(dir, config.DataDirName)
	if err := SaveLeafData(tree, dataDir); err != nil {
		return err
	}

	archive := filepath.Join(dir, config.LeafDataArchiveName)
	if err := createTarGz(dataDir, archive); err != nil {
		return fmt.Errorf("create leaf data archive: %w", err)
	}

	log.Info("tree persisted", "collection", cfg.Collection, "dir", dir,
		"nodes", tree.NodeCount(), "leaves", len(tree.Leaves()))
	return nil
}

// SaveTree writes the serialized node graph to <collection>-tree.bin.
func SaveTree(tree *startree.Tree, dir string) error {
	snaps, err := tree.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot tree: %w", err)
	}
	data, err := cbor.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	path := filepath.Join(dir, tree.Config().TreeFileName())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write tree file: %w", err)
	}
	return nil
}

// SaveLeafData writes one record blob and one dictionary snapshot per leaf
// under dataDir. Blobs are written concurrently; any failure aborts the
// whole save.
func SaveLeafData(tree *startree.Tree, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	snapshot := tree.Dictionary().Snapshot()
	idxData, err := cbor.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode dictionary: %w", err)
	}

	var g errgroup.Group
	workers := config.DefaultPersistWorkers
	if n := runtime.GOMAXPROCS(0); n < workers {
		workers = n
	}
	g.SetLimit(workers)

	for _, leaf := range tree.Leaves() {
		g.Go(func() error {
			base := filepath.Join(dataDir, leaf.ID().String())
			if err := writeLeafBuffer(base+config.LeafBufferSuffix, tree.Config(), leaf.Store().Records()); err != nil {
				return fmt.Errorf("leaf %s: %w", leaf.ID(), err)
			}
			if err := os.WriteFile(base+config.LeafIndexSuffix, idxData, 0644); err != nil {
				return fmt.Errorf("leaf %s: write index: %w", leaf.ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Load reconstructs a sealed, queryable tree from a persisted collection
// directory. The registered config must match the persisted schema.
//
// A missing tree file fails with ErrNotFound; unreadable or structurally
// invalid artifacts fail with ErrCorruptState.
func Load(dir string, registered *treecfg.StarTreeConfig) (*startree.Tree, error) {
	cfgPath := filepath.Join(dir, config.ConfigFileName)
	persisted, err := treecfg.Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			return nil, errors.NewNotFound("config", cfgPath)
		}
		return nil, errors.NewCorrupt(cfgPath, err)
	}
	if registered != nil && !registered.Equal(persisted) {
		return nil, errors.Wrapf(errors.ErrConfigMismatch,
			"persisted schema for %s differs from registered config", persisted.Collection)
	}

	treePath := filepath.Join(dir, persisted.TreeFileName())
	data, err := os.ReadFile(treePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("tree file", treePath)
		}
		return nil, fmt.Errorf("read tree file: %w", err)
	}

	var snaps []startree.NodeSnapshot
	if err := cbor.Unmarshal(data, &snaps); err != nil {
		return nil, errors.NewCorrupt(treePath, err)
	}

	dataDir := filepath.Join(dir, config.DataDirName)
	dictionary, err := loadDictionary(dataDir, snaps)
	if err != nil {
		return nil, err
	}

	tree, err := startree.FromSnapshot(persisted, snaps, dictionary)
	if err != nil {
		return nil, errors.NewCorrupt(treePath, err)
	}

	if err := loadLeafData(tree, dataDir); err != nil {
		return nil, err
	}
	return tree, nil
}

// loadDictionary restores the forward index from the first leaf snapshot
// found. Every leaf carries an identical copy; any one reconstructs the
// sealed dictionary.
func loadDictionary(dataDir string, snaps []startree.NodeSnapshot) (*dict.Dictionary, error) {
	for _, s := range snaps {
		if s.SplitDimension != "" {
			continue
		}
		path := filepath.Join(dataDir, s.ID.String()+config.LeafIndexSuffix)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewNotFound("dictionary snapshot", path)
			}
			return nil, fmt.Errorf("read dictionary snapshot: %w", err)
		}
		var snapshot dict.Snapshot
		if err := cbor.Unmarshal(data, &snapshot); err != nil {
			return nil, errors.NewCorrupt(path, err)
		}
		return dict.Restore(snapshot), nil
	}
	return nil, errors.NewCorrupt(dataDir, fmt.Errorf("no leaf nodes in tree"))
}

// loadLeafData refills every leaf's record store from its parquet blob.
func loadLeafData(tree *startree.Tree, dataDir string) error {
	for _, leaf := range tree.Leaves() {
		path := filepath.Join(dataDir, leaf.ID().String()+config.LeafBufferSuffix)
		records, err := readLeafBuffer(path, tree.Config())
		if err != nil {
			if os.IsNotExist(err) {
				return errors.NewNotFound("leaf data", path)
			}
			return errors.NewCorrupt(path, err)
		}
		for _, r := range records {
			if err := leaf.Store().Insert(r); err != nil {
				return fmt.Errorf("refill leaf %s: %w", leaf.ID(), err)
			}
		}
	}
	return nil
}

// Restore copies persisted state for one collection from baseDir into
// destDir, repairing a missing data directory from the leaf-data archive
// when necessary, and validates the result. Used for disaster recovery
// prior to open.
func Restore(baseDir, destDir string, cfg *treecfg.StarTreeConfig) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	for _, name := range []string{cfg.TreeFileName(), config.ConfigFileName, config.LeafDataArchiveName} {
		src := filepath.Join(baseDir, name)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) && name == config.LeafDataArchiveName {
				continue
			}
			return errors.NewCorrupt(src, err)
		}
		if sameFile(src, filepath.Join(destDir, name)) {
			continue
		}
		if err := copyFile(src, filepath.Join(destDir, name)); err != nil {
			return fmt.Errorf("copy %s: %w", name, err)
		}
	}

	srcData := filepath.Join(baseDir, config.DataDirName)
	destData := filepath.Join(destDir, config.DataDirName)
	if _, err := os.Stat(srcData); err == nil {
		if !sameFile(srcData, destData) {
			if err := copyDir(srcData, destData); err != nil {
				return fmt.Errorf("copy data dir: %w", err)
			}
		}
	} else {
		// Repair the data dir from the archive.
		archive := filepath.Join(destDir, config.LeafDataArchiveName)
		if _, err := os.Stat(archive); err != nil {
			return errors.NewCorrupt(srcData, fmt.Errorf("no data dir and no archive"))
		}
		if err := extractTarGz(archive, destData); err != nil {
			return errors.NewCorrupt(archive, err)
		}
	}

	// Validate by loading; a structurally invalid restore must not be left
	// in place looking healthy.
	tree, err := Load(destDir, cfg)
	if err != nil {
		return err
	}
	return tree.Close()
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// LeafIDs lists the node ids that have data blobs under dataDir.
func LeafIDs(dataDir string) ([]uuid.UUID, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != config.LeafBufferSuffix {
			continue
		}
		id, err := uuid.Parse(name[:len(name)-len(config.LeafBufferSuffix)])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
