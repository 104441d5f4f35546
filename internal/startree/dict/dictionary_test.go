package dict

import (
	"testing"

	"github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/errors"
)

func TestDictionary_SentinelIDs(t *testing.T) {
	d := New([]string{"browser"})

	id, err := d.Encode("browser", config.Star)
	if err != nil {
		t.Fatalf("encode star: %v", err)
	}
	if id != config.StarValue {
		t.Errorf("expected star id %d, got %d", config.StarValue, id)
	}

	id, err = d.Encode("browser", config.Other)
	if err != nil {
		t.Fatalf("encode other: %v", err)
	}
	if id != config.OtherValue {
		t.Errorf("expected other id %d, got %d", config.OtherValue, id)
	}
}

func TestDictionary_SequentialAllocation(t *testing.T) {
	d := New([]string{"browser"})

	first, err := d.Encode("browser", "chrome")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if first != config.FirstValue {
		t.Errorf("first concrete value should get id %d, got %d", config.FirstValue, first)
	}

	second, _ := d.Encode("browser", "firefox")
	if second != first+1 {
		t.Errorf("expected sequential id %d, got %d", first+1, second)
	}

	// Encoding an existing value is stable.
	again, _ := d.Encode("browser", "chrome")
	if again != first {
		t.Errorf("re-encode should return same id, got %d", again)
	}

	if d.Cardinality("browser") != 2 {
		t.Errorf("expected cardinality 2, got %d", d.Cardinality("browser"))
	}
}

func TestDictionary_ReverseLookup(t *testing.T) {
	d := New([]string{"browser"})
	id, _ := d.Encode("browser", "chrome")

	v, ok := d.ValueOf("browser", id)
	if !ok || v != "chrome" {
		t.Errorf("expected chrome, got %s (ok=%v)", v, ok)
	}
	if _, ok := d.ValueOf("browser", 999); ok {
		t.Error("unknown id should not resolve")
	}
}

func TestDictionary_SealedRejectsNewValues(t *testing.T) {
	d := New([]string{"browser"})
	d.Encode("browser", "chrome")
	d.Seal()

	if !d.Sealed() {
		t.Fatal("dictionary should report sealed")
	}

	if _, err := d.Encode("browser", "opera"); !errors.Is(err, errors.ErrSealed) {
		t.Errorf("expected ErrSealed, got %v", err)
	}

	// Known values still resolve.
	if id, err := d.Encode("browser", "chrome"); err != nil || id != config.FirstValue {
		t.Errorf("sealed lookup of known value failed: id=%d err=%v", id, err)
	}
}

func TestDictionary_IDOfUnknownAfterSeal(t *testing.T) {
	d := New([]string{"browser"})
	d.Encode("browser", "chrome")
	d.Seal()

	id, err := d.IDOf("browser", "opera")
	if err != nil {
		t.Fatalf("idof: %v", err)
	}
	if id != config.OtherValue {
		t.Errorf("unknown value in sealed dictionary should resolve to other (%d), got %d",
			config.OtherValue, id)
	}
}

func TestDictionary_UnknownDimension(t *testing.T) {
	d := New([]string{"browser"})
	if _, err := d.Encode("color", "red"); !errors.Is(err, errors.ErrUnknownDimension) {
		t.Errorf("expected ErrUnknownDimension, got %v", err)
	}
}

func TestDictionary_SnapshotRestore(t *testing.T) {
	d := New([]string{"browser", "country"})
	d.Encode("browser", "chrome")
	d.Encode("browser", "firefox")
	d.Encode("country", "us")
	d.Seal()

	r := Restore(d.Snapshot())

	if !r.Sealed() {
		t.Error("restored dictionary must be sealed")
	}
	for _, dim := range []string{"browser", "country"} {
		if r.Cardinality(dim) != d.Cardinality(dim) {
			t.Errorf("%s: cardinality %d != %d", dim, r.Cardinality(dim), d.Cardinality(dim))
		}
	}
	id, err := r.IDOf("browser", "firefox")
	if err != nil || id != config.FirstValue+1 {
		t.Errorf("restored id mismatch: id=%d err=%v", id, err)
	}
	if v, ok := r.ValueOf("country", config.FirstValue); !ok || v != "us" {
		t.Errorf("restored reverse lookup failed: %s (ok=%v)", v, ok)
	}
}
