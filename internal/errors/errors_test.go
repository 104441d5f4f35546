package errors

import "testing"

func TestCategoryPredicates(t *testing.T) {
	if !IsLifecycle(NewNotFound("tree file", "x-tree.bin")) {
		t.Error("not-found should be a lifecycle error")
	}
	if !IsFatal(NewCorrupt("tree file", nil)) {
		t.Error("corrupt state should be fatal")
	}
	if !IsQueryError(NewUnknownDimension("color")) {
		t.Error("unknown dimension should be a query error")
	}
	if IsFatal(ErrNotOpen) {
		t.Error("not-open is recoverable, not fatal")
	}
	if IsQueryError(ErrCorruptState) {
		t.Error("corruption is not a per-query error")
	}
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrapf(ErrConfigMismatch, "collection %s", "traffic")
	if !Is(err, ErrConfigMismatch) {
		t.Error("wrapped error should match its sentinel")
	}
	if Wrap(nil, "context") != nil {
		t.Error("wrapping nil should stay nil")
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.HasErrors() || v.Err() != nil {
		t.Error("fresh collector should be empty")
	}

	v.AddMissing("collection")
	v.AddField("threshold", "must not be negative")
	v.Add(nil) // ignored

	if len(v.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(v.Errors))
	}
	if !Is(v.Err(), ErrMissingField) {
		t.Error("collector should unwrap to its first error")
	}
	if !IsValidation(v.Errors[1]) {
		t.Error("field error should be a validation error")
	}
}
