package store

import (
	"testing"

	"github.com/xtxerr/startree/internal/errors"
	"github.com/xtxerr/startree/internal/startree/types"
)

func TestLog_KeepsEveryRecord(t *testing.T) {
	l := NewLog(testMetricNames, testMetricTypes)

	l.Insert(record("chrome", "us", 10))
	l.Insert(record("chrome", "us", 5))
	l.Insert(record("firefox", "us", 1))

	if l.Len() != 3 {
		t.Errorf("log store must keep duplicates, got %d", l.Len())
	}
	if l.DistinctCount() != 2 {
		t.Errorf("expected 2 distinct groups, got %d", l.DistinctCount())
	}

	agg := l.Aggregate(types.NewQuery(map[string]string{"browser": "chrome"}))
	if agg.Metrics["impressions"] != 15 {
		t.Errorf("expected sum 15, got %f", agg.Metrics["impressions"])
	}
}

func TestLog_CompactMergesGroups(t *testing.T) {
	l := NewLog(testMetricNames, testMetricTypes)
	l.Insert(record("chrome", "us", 10))
	l.Insert(record("chrome", "us", 5))
	l.Insert(record("firefox", "us", 1))

	reclaimed := l.Compact()
	if reclaimed != 1 {
		t.Errorf("expected 1 record reclaimed, got %d", reclaimed)
	}
	if l.Len() != 2 {
		t.Errorf("expected 2 entries after compact, got %d", l.Len())
	}

	// Totals survive compaction.
	agg := l.Aggregate(types.NewQuery(nil))
	if agg.Metrics["impressions"] != 16 {
		t.Errorf("expected total 16 after compact, got %f", agg.Metrics["impressions"])
	}

	// Compacting a compacted store is a no-op.
	if reclaimed := l.Compact(); reclaimed != 0 {
		t.Errorf("second compact reclaimed %d", reclaimed)
	}
}

func TestLog_Close(t *testing.T) {
	l := NewLog(testMetricNames, testMetricTypes)
	l.Insert(record("chrome", "us", 1))

	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := l.Insert(record("chrome", "us", 1)); !errors.Is(err, errors.ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

func TestNewFactory_Variants(t *testing.T) {
	if _, ok := NewFactory("log", 0, testMetricNames, testMetricTypes)().(*Log); !ok {
		t.Error("log variant should produce a Log store")
	}
	if _, ok := NewFactory("circular", 16, testMetricNames, testMetricTypes)().(*Circular); !ok {
		t.Error("circular variant should produce a Circular store")
	}
	// Unrecognized/empty falls back to circular.
	if _, ok := NewFactory("", 16, testMetricNames, testMetricTypes)().(*Circular); !ok {
		t.Error("default variant should produce a Circular store")
	}
}
