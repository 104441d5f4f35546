package config

import (
	"errors"
	"fmt"

	"github.com/xtxerr/startree/config"
)

// Validate checks the configuration for errors.
func (c *StarTreeConfig) Validate() error {
	var errs []error

	if c.Collection == "" {
		errs = append(errs, errors.New("collection is required"))
	}

	if len(c.Dimensions) == 0 {
		errs = append(errs, errors.New("at least one dimension is required"))
	}
	seen := make(map[string]bool, len(c.Dimensions))
	for _, d := range c.Dimensions {
		switch {
		case d == "":
			errs = append(errs, errors.New("dimension name must not be empty"))
		case d == config.Star || d == config.Other:
			errs = append(errs, fmt.Errorf("dimension name %q is reserved", d))
		case seen[d]:
			errs = append(errs, fmt.Errorf("duplicate dimension %q", d))
		}
		seen[d] = true
	}

	if len(c.Metrics) == 0 {
		errs = append(errs, errors.New("at least one metric is required"))
	}
	for _, m := range c.Metrics {
		if m.Name == "" {
			errs = append(errs, errors.New("metric name must not be empty"))
		}
		if !m.Type.Valid() {
			errs = append(errs, fmt.Errorf("metric %q: unknown type %q", m.Name, m.Type))
		}
	}

	if err := c.Split.validate(seen); err != nil {
		errs = append(errs, fmt.Errorf("split: %w", err))
	}

	if err := c.Storage.validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validate checks the split spec against the declared dimensions.
func (s *SplitSpec) validate(dimensions map[string]bool) error {
	var errs []error

	if s.Threshold < 0 {
		errs = append(errs, errors.New("threshold must not be negative"))
	}

	seen := make(map[string]bool, len(s.Order))
	for _, d := range s.Order {
		if !dimensions[d] {
			errs = append(errs, fmt.Errorf("order references undeclared dimension %q", d))
		}
		if seen[d] {
			errs = append(errs, fmt.Errorf("order repeats dimension %q", d))
		}
		seen[d] = true
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validate checks the storage spec.
func (s *StorageSpec) validate() error {
	var errs []error

	switch s.Store {
	case "", StoreCircular, StoreLog:
	default:
		errs = append(errs, fmt.Errorf("unknown record store %q", s.Store))
	}

	if s.Capacity < 0 {
		errs = append(errs, errors.New("capacity must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Record store variant names accepted in StorageSpec.Store.
const (
	StoreCircular = "circular"
	StoreLog      = "log"
)
