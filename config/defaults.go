// Package config provides configuration defaults and reserved constants
// for the startree library.
//
// This package defines all configurable constants with documented defaults.
// Users can override the tunables via the per-collection config file; the
// reserved sentinel values and file names are fixed parts of the persisted
// format and must never change once trees have been written.
package config

// =============================================================================
// Reserved Dimension Sentinels
// =============================================================================

const (
	// Star is the wildcard dimension value: "aggregate across all values of
	// this dimension". It appears in queries and in the relabeled records
	// stored under a node's star child.
	Star = "*"

	// Other is the overflow dimension value, used for values that are not
	// present in a sealed dictionary and for the not-yet-split dimensions of
	// catch-all records.
	Other = "?"
)

const (
	// StarValue is the reserved dictionary id for Star.
	StarValue int32 = 0

	// OtherValue is the reserved dictionary id for Other.
	OtherValue int32 = 1

	// FirstValue is the first id assigned to a concrete dimension value.
	// Ids grow sequentially from here; 0 and 1 are never assigned.
	FirstValue int32 = 2
)

// =============================================================================
// Persisted Artifact Names
// =============================================================================

const (
	// TreeFileSuffix is appended to the collection name to form the tree
	// structure file, e.g. "metrics-tree.bin".
	TreeFileSuffix = "-tree.bin"

	// ConfigFileName is the per-collection schema file written next to the
	// tree file and validated on open.
	ConfigFileName = "config.yaml"

	// DataDirName is the directory holding one record blob and one
	// dictionary snapshot per leaf node.
	DataDirName = "data"

	// LeafDataArchiveName is the compressed archive of DataDirName produced
	// for bulk transfer to serving nodes.
	LeafDataArchiveName = "leaf-data.tar.gz"

	// LeafBufferSuffix is the extension of a leaf's record blob.
	LeafBufferSuffix = ".parquet"

	// LeafIndexSuffix is the extension of a leaf's dictionary snapshot.
	LeafIndexSuffix = ".idx"
)

// =============================================================================
// Builder Defaults
// =============================================================================

const (
	// DefaultSplitThreshold is the maximum number of distinct record groups
	// a leaf may hold before it is split on the next dimension in the split
	// order. Override via config: split.threshold
	DefaultSplitThreshold = 1000

	// MaxCatchAllPasses bounds the catch-all injection fixed point. The loop
	// converges in practice because injected records carry zero metric mass;
	// the cap turns a pathological configuration into a hard error instead
	// of an unbounded build.
	MaxCatchAllPasses = 100

	// DefaultRecordStoreCapacity is the slot count of the circular record
	// store variant. Override via config: storage.capacity
	DefaultRecordStoreCapacity = 4096

	// DefaultPersistWorkers bounds concurrent leaf blob writes during
	// persistence.
	DefaultPersistWorkers = 8
)

// =============================================================================
// Stats Defaults
// =============================================================================

const (
	// DefaultSketchAccuracy is the DDSketch relative accuracy used by the
	// build-time stats collector (0.01 = 1% error).
	DefaultSketchAccuracy = 0.01
)
