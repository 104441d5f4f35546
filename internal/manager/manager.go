// Package manager owns the lifecycle of star-tree collections.
//
// A collection moves through three states: registered (config known, no
// tree in memory), open (sealed tree loaded and queryable), and closed
// (tree released, re-openable). The manager guarantees at most one open
// tree per collection and serializes lifecycle transitions per collection
// while reads on distinct collections proceed concurrently.
package manager

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/errors"
	"github.com/xtxerr/startree/internal/logging"
	"github.com/xtxerr/startree/internal/startree"
	treecfg "github.com/xtxerr/startree/internal/startree/config"
	"github.com/xtxerr/startree/internal/startree/persist"
)

// =============================================================================
// Collection State Constants
// =============================================================================

const (
	// StateRegistered indicates a config is known but no tree is loaded.
	StateRegistered = "registered"

	// StateOpen indicates a sealed tree is loaded and queryable.
	StateOpen = "open"

	// StateClosed indicates the tree has been released; the collection can
	// be opened again.
	StateClosed = "closed"
)

// =============================================================================
// collection
// =============================================================================

// collection holds the per-collection lifecycle state. Its mutex serializes
// lifecycle transitions for this collection only.
type collection struct {
	name string

	mu    sync.Mutex
	cfg   *treecfg.StarTreeConfig
	tree  *startree.Tree
	state string
}

// =============================================================================
// Manager
// =============================================================================

// Manager tracks registered configs and open trees for a set of collections
// rooted at a working directory. Each collection's persisted artifacts live
// under <rootDir>/<collection>/.
//
// Manager is safe for concurrent use.
type Manager struct {
	rootDir string
	log     *slog.Logger

	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates a manager with its working directory at rootDir.
func New(rootDir string) *Manager {
	return &Manager{
		rootDir:     rootDir,
		log:         logging.Component("manager"),
		collections: make(map[string]*collection),
	}
}

// RootDir returns the manager's working directory.
func (m *Manager) RootDir() string {
	return m.rootDir
}

// collectionDir returns the persisted artifact directory for a collection.
func (m *Manager) collectionDir(name string) string {
	return filepath.Join(m.rootDir, name)
}

// get returns the tracked collection, creating the entry if needed.
func (m *Manager) get(name string) *collection {
	m.mu.RLock()
	c, ok := m.collections[name]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		return c
	}
	c = &collection{name: name, state: StateClosed}
	m.collections[name] = c
	return c
}

// lookup returns the tracked collection without creating it.
func (m *Manager) lookup(name string) (*collection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	return c, ok
}

// =============================================================================
// Registration
// =============================================================================

// RegisterConfig associates a schema with a collection name. Registering
// the same config again is a no-op. Registering a different config is
// allowed while the collection is not open; while open it fails with
// ErrConfigMismatch so queries never see a schema swap under them.
func (m *Manager) RegisterConfig(name string, cfg *treecfg.StarTreeConfig) error {
	if cfg == nil {
		return errors.NewMissingField("config")
	}
	if cfg.Collection != name {
		return errors.NewValidation("collection",
			fmt.Sprintf("config is for %q, registered under %q", cfg.Collection, name))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c := m.get(name)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg != nil && c.cfg.Equal(cfg) {
		return nil
	}
	if c.state == StateOpen {
		return errors.Wrapf(errors.ErrConfigMismatch, "collection %s", name)
	}
	c.cfg = cfg
	if c.state == StateClosed {
		c.state = StateRegistered
	}
	m.log.Info("config registered", "collection", name,
		"dimensions", len(cfg.Dimensions), "metrics", len(cfg.Metrics))
	return nil
}

// GetConfig returns the registered config for a collection.
func (m *Manager) GetConfig(name string) (*treecfg.StarTreeConfig, error) {
	c, ok := m.lookup(name)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnregisteredCollection, "collection %s", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg == nil {
		return nil, errors.Wrapf(errors.ErrUnregisteredCollection, "collection %s", name)
	}
	return c.cfg, nil
}

// Collections returns the names of all tracked collections, sorted.
func (m *Manager) Collections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsOpen reports whether a collection currently has a loaded tree.
func (m *Manager) IsOpen(name string) bool {
	c, ok := m.lookup(name)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateOpen
}

// =============================================================================
// Open / Close
// =============================================================================

// Open loads the persisted tree for a registered collection and makes it
// queryable. Opening an already-open collection is a no-op. Missing
// artifacts fail with ErrNotFound, unreadable ones with ErrCorruptState;
// neither changes the collection's registration.
func (m *Manager) Open(name string) error {
	c, ok := m.lookup(name)
	if !ok {
		return errors.Wrapf(errors.ErrUnregisteredCollection, "collection %s", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg == nil {
		return errors.Wrapf(errors.ErrUnregisteredCollection, "collection %s", name)
	}
	if c.state == StateOpen {
		return nil
	}

	tree, err := persist.Load(m.collectionDir(name), c.cfg)
	if err != nil {
		return err
	}
	c.tree = tree
	c.state = StateOpen
	m.log.Info("collection opened", "collection", name,
		"nodes", tree.NodeCount(), "leaves", len(tree.Leaves()))
	return nil
}

// GetStarTree returns the open tree for a collection. The tree is only
// handed out while open; callers must not retain it across Close.
func (m *Manager) GetStarTree(name string) (*startree.Tree, error) {
	c, ok := m.lookup(name)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotOpen, "collection %s", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil, errors.Wrapf(errors.ErrNotOpen, "collection %s", name)
	}
	return c.tree, nil
}

// Close compacts and releases the open tree for a collection. Closing a
// collection that is not open is a no-op. The registration survives, so
// the collection can be opened again.
func (m *Manager) Close(name string) error {
	c, ok := m.lookup(name)
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return nil
	}
	err := c.tree.Close()
	c.tree = nil
	if c.cfg != nil {
		c.state = StateRegistered
	} else {
		c.state = StateClosed
	}
	m.log.Info("collection closed", "collection", name)
	return err
}

// CloseAll closes every open collection. The first error is returned but
// all collections are attempted.
func (m *Manager) CloseAll() error {
	var first error
	for _, name := range m.Collections() {
		if err := m.Close(name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// =============================================================================
// Restore / Stub
// =============================================================================

// Restore copies the persisted artifacts for a collection from baseDir into
// the manager's working directory, repairing a missing data directory from
// the leaf-data archive, and validates them. The collection must not be
// open. Restore does not open the collection; call Open afterward.
func (m *Manager) Restore(baseDir, name string) error {
	srcDir := filepath.Join(baseDir, name)
	cfg, err := treecfg.Load(filepath.Join(srcDir, config.ConfigFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.NewNotFound("collection", srcDir)
		}
		return errors.NewCorrupt(srcDir, err)
	}

	c := m.get(name)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen {
		return errors.Wrapf(errors.ErrAlreadyOpen, "collection %s", name)
	}
	if c.cfg != nil && !c.cfg.Equal(cfg) {
		return errors.Wrapf(errors.ErrConfigMismatch,
			"restored schema for %s differs from registered config", name)
	}

	if err := persist.Restore(srcDir, m.collectionDir(name), cfg); err != nil {
		return err
	}

	c.cfg = cfg
	c.state = StateRegistered
	m.log.Info("collection restored", "collection", name, "from", srcDir)
	return nil
}

// Stub persists an empty sealed tree for a registered collection under
// baseDir. A stubbed collection opens and answers every query with zero
// valued metrics, which keeps downstream consumers alive before the first
// real build lands.
func (m *Manager) Stub(baseDir, name string) error {
	c, ok := m.lookup(name)
	if !ok {
		return errors.Wrapf(errors.ErrUnregisteredCollection, "collection %s", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg == nil {
		return errors.Wrapf(errors.ErrUnregisteredCollection, "collection %s", name)
	}

	tree, err := startree.New(c.cfg)
	if err != nil {
		return err
	}
	tree.Seal()
	defer tree.Close()

	if err := persist.Save(tree, filepath.Join(baseDir, name)); err != nil {
		return err
	}
	m.log.Info("stub persisted", "collection", name, "dir", filepath.Join(baseDir, name))
	return nil
}
