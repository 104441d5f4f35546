package stats

import (
	"math"
	"testing"

	"github.com/xtxerr/startree/internal/startree/types"
)

func observe(c *Collector, browser string, impressions float64) {
	c.Observe(types.NewRecord(
		map[string]string{"browser": browser},
		map[string]float64{"impressions": impressions},
		map[string]types.MetricType{"impressions": types.MetricLong},
		0,
	))
}

func TestCollector_Basic(t *testing.T) {
	c := NewCollector([]string{"browser"}, []string{"impressions"})

	observe(c, "chrome", 10)
	observe(c, "chrome", 20)
	observe(c, "firefox", 30)

	if c.RecordCount() != 3 {
		t.Errorf("expected 3 records, got %d", c.RecordCount())
	}

	report := c.Report([]string{"browser"}, []string{"impressions"})

	if len(report.Dimensions) != 1 || report.Dimensions[0].Cardinality != 2 {
		t.Errorf("expected browser cardinality 2, got %+v", report.Dimensions)
	}

	m := report.Metrics[0]
	if m.Count != 3 {
		t.Errorf("expected count 3, got %d", m.Count)
	}
	if m.Sum != 60 {
		t.Errorf("expected sum 60, got %f", m.Sum)
	}
	if m.Min != 10 || m.Max != 30 {
		t.Errorf("expected min/max 10/30, got %f/%f", m.Min, m.Max)
	}
}

func TestCollector_Quantiles(t *testing.T) {
	c := NewCollector([]string{"browser"}, []string{"impressions"})
	for i := 1; i <= 100; i++ {
		observe(c, "chrome", float64(i))
	}

	m := c.Report([]string{"browser"}, []string{"impressions"}).Metrics[0]

	// DDSketch is approximate; allow a relative margin.
	if math.Abs(m.P50-50) > 3 {
		t.Errorf("expected P50 near 50, got %f", m.P50)
	}
	if math.Abs(m.P99-99) > 3 {
		t.Errorf("expected P99 near 99, got %f", m.P99)
	}
	if m.P50 > m.P90 || m.P90 > m.P95 || m.P95 > m.P99 {
		t.Errorf("quantiles out of order: %f %f %f %f", m.P50, m.P90, m.P95, m.P99)
	}
}

func TestCollector_EmptyReport(t *testing.T) {
	c := NewCollector([]string{"browser"}, []string{"impressions"})
	report := c.Report([]string{"browser"}, []string{"impressions"})

	if report.RecordCount != 0 {
		t.Errorf("expected 0 records, got %d", report.RecordCount)
	}
	m := report.Metrics[0]
	if m.Count != 0 || m.Min != 0 || m.Max != 0 {
		t.Errorf("empty metric stats should be zero valued: %+v", m)
	}
}

func TestCollector_IgnoresUndeclaredNames(t *testing.T) {
	c := NewCollector([]string{"browser"}, []string{"impressions"})

	c.Observe(types.NewRecord(
		map[string]string{"browser": "chrome", "surprise": "x"},
		map[string]float64{"impressions": 1, "surprise": 99},
		map[string]types.MetricType{"impressions": types.MetricLong},
		0,
	))

	report := c.Report([]string{"browser"}, []string{"impressions"})
	if report.Metrics[0].Sum != 1 {
		t.Errorf("undeclared metric leaked into report: %+v", report.Metrics[0])
	}
}
