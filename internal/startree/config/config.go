// Package config defines the per-collection star-tree schema: dimensions,
// metrics, time column, split policy, and record store selection.
//
// A StarTreeConfig is constructed once before a tree is built or opened,
// is immutable thereafter, and is persisted alongside the tree so that
// open/restore can validate schema compatibility.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/startree/types"
)

// StarTreeConfig is the complete schema for one collection.
type StarTreeConfig struct {
	// Collection is the logical collection name. It prefixes the persisted
	// tree file name.
	Collection string `yaml:"collection"`

	// Dimensions is the ordered dimension name list. Every record must carry
	// a value for each.
	Dimensions []string `yaml:"dimensions"`

	// Metrics declares metric names and types in matching order.
	Metrics []MetricSpec `yaml:"metrics"`

	// Time describes the time column and its granularities.
	Time TimeSpec `yaml:"time"`

	// Split controls when and in what order leaves split.
	Split SplitSpec `yaml:"split"`

	// Storage selects and sizes the record store implementation.
	Storage StorageSpec `yaml:"storage"`
}

// MetricSpec declares one metric.
type MetricSpec struct {
	Name string           `yaml:"name"`
	Type types.MetricType `yaml:"type"`
}

// TimeSpec describes the time column: the input granularity records arrive
// in, the bucket granularity they are aggregated to, and the retention
// window expressed in buckets.
type TimeSpec struct {
	ColumnName string          `yaml:"column_name"`
	Input      TimeGranularity `yaml:"input"`
	Bucket     TimeGranularity `yaml:"bucket"`
	Retention  TimeGranularity `yaml:"retention"`
}

// TimeGranularity is a size/unit pair, e.g. {1, "h"} for hourly.
type TimeGranularity struct {
	Size int           `yaml:"size"`
	Unit time.Duration `yaml:"unit"`
}

// Duration returns the granularity as a duration.
func (g TimeGranularity) Duration() time.Duration {
	return time.Duration(g.Size) * g.Unit
}

// BucketTime converts a raw record time (in input granularity units) to a
// bucketed time (in bucket granularity units).
func (t TimeSpec) BucketTime(raw int64) int64 {
	in := t.Input.Duration()
	out := t.Bucket.Duration()
	if in <= 0 || out <= 0 || in == out {
		return raw
	}
	return raw * int64(in) / int64(out)
}

// SplitSpec controls leaf splitting.
type SplitSpec struct {
	// Threshold is the maximum distinct record groups a leaf may hold
	// before being split on the next dimension in Order.
	Threshold int `yaml:"threshold"`

	// Order is the sequence in which dimensions are chosen for splits.
	// Defaults to the configured dimension order.
	Order []string `yaml:"order"`
}

// StorageSpec selects the record store implementation for leaves.
type StorageSpec struct {
	// Store is the record store variant: "circular" or "log".
	Store string `yaml:"store"`

	// Capacity is the slot count for the circular variant.
	Capacity int `yaml:"capacity"`
}

// MetricNames returns the metric names in declaration order.
func (c *StarTreeConfig) MetricNames() []string {
	names := make([]string, len(c.Metrics))
	for i, m := range c.Metrics {
		names[i] = m.Name
	}
	return names
}

// MetricTypes returns the metric types in declaration order.
func (c *StarTreeConfig) MetricTypes() []types.MetricType {
	out := make([]types.MetricType, len(c.Metrics))
	for i, m := range c.Metrics {
		out[i] = m.Type
	}
	return out
}

// SplitOrder returns the effective split order: the configured order, or the
// dimension list when none was set.
func (c *StarTreeConfig) SplitOrder() []string {
	if len(c.Split.Order) > 0 {
		return c.Split.Order
	}
	return c.Dimensions
}

// SplitThreshold returns the effective split threshold.
func (c *StarTreeConfig) SplitThreshold() int {
	if c.Split.Threshold > 0 {
		return c.Split.Threshold
	}
	return config.DefaultSplitThreshold
}

// StoreCapacity returns the effective circular store capacity.
func (c *StarTreeConfig) StoreCapacity() int {
	if c.Storage.Capacity > 0 {
		return c.Storage.Capacity
	}
	return config.DefaultRecordStoreCapacity
}

// HasDimension reports whether the schema declares the dimension.
func (c *StarTreeConfig) HasDimension(name string) bool {
	for _, d := range c.Dimensions {
		if d == name {
			return true
		}
	}
	return false
}

// TreeFileName returns the persisted tree file name for this collection.
func (c *StarTreeConfig) TreeFileName() string {
	return c.Collection + config.TreeFileSuffix
}

// Equal reports whether two configs describe the same schema. Used to
// reject re-registration with a different config.
func (c *StarTreeConfig) Equal(other *StarTreeConfig) bool {
	if other == nil {
		return false
	}
	a, err := yaml.Marshal(c)
	if err != nil {
		return false
	}
	b, err := yaml.Marshal(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

// Load loads and validates a config from a YAML file.
func Load(path string) (*StarTreeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Decode(data)
}

// Decode parses and validates a config from YAML bytes.
func Decode(data []byte) (*StarTreeConfig, error) {
	cfg := &StarTreeConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *StarTreeConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
