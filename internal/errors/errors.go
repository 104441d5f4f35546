// Package errors consolidates error definitions for the startree library.
//
// This package provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel errors
// =============================================================================

var (
	// Lifecycle errors
	ErrUnregisteredCollection = errors.New("collection is not registered")
	ErrConfigMismatch         = errors.New("config mismatch for open collection")
	ErrNotFound               = errors.New("persisted artifact not found")
	ErrCorruptState           = errors.New("persisted state is corrupt")
	ErrNotOpen                = errors.New("collection is not open")
	ErrAlreadyOpen            = errors.New("collection is already open")

	// Build errors
	ErrBuilderDidNotConverge = errors.New("catch-all injection did not converge")
	ErrSealed                = errors.New("tree is sealed")
	ErrNotSealed             = errors.New("tree is not sealed")

	// Dictionary errors
	ErrCapacityExceeded = errors.New("dictionary id space exceeded")

	// Query errors
	ErrUnknownDimension = errors.New("query references unknown dimension")
	ErrUnknownMetric    = errors.New("query references unknown metric")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")

	// Store errors
	ErrStoreClosed = errors.New("record store is closed")
)

// =============================================================================
// Helper functions for error checking
// =============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsLifecycle returns true if err is a manager lifecycle error.
func IsLifecycle(err error) bool {
	return errors.Is(err, ErrUnregisteredCollection) ||
		errors.Is(err, ErrConfigMismatch) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCorruptState) ||
		errors.Is(err, ErrNotOpen) ||
		errors.Is(err, ErrAlreadyOpen)
}

// IsQueryError returns true if err is recoverable per-query: the tree stays
// healthy and other queries may proceed.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrUnknownDimension) ||
		errors.Is(err, ErrUnknownMetric)
}

// IsFatal returns true if err leaves the affected collection unusable and
// requires a rebuild or a restore from a known-good archive.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCorruptState) ||
		errors.Is(err, ErrBuilderDidNotConverge) ||
		errors.Is(err, ErrCapacityExceeded)
}

// IsValidation returns true if err is a configuration validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField)
}

// =============================================================================
// Error wrapping utilities
// =============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// =============================================================================
// Error constructors with context
// =============================================================================

// NewNotFound creates a not-found error with context.
func NewNotFound(artifact, identifier string) error {
	return fmt.Errorf("%s '%s': %w", artifact, identifier, ErrNotFound)
}

// NewCorrupt creates a corrupt-state error with context.
func NewCorrupt(artifact string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", artifact, ErrCorruptState)
	}
	return fmt.Errorf("%s: %v: %w", artifact, cause, ErrCorruptState)
}

// NewUnknownDimension creates an unknown-dimension query error.
func NewUnknownDimension(dimension string) error {
	return fmt.Errorf("dimension '%s': %w", dimension, ErrUnknownDimension)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// =============================================================================
// Validation Errors Collection
// =============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}
