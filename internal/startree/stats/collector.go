// Package stats collects build-time statistics: per-dimension cardinality
// and per-metric value distributions. The builder feeds every ingested
// record through a Collector and reports the result once at seal time,
// which is the cheapest place to learn whether a split order or threshold
// is badly tuned for the data.
package stats

import (
	"math"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/startree/config"
	"github.com/xtxerr/startree/internal/startree/types"
)

// Collector accumulates statistics over a record stream.
type Collector struct {
	mu sync.Mutex

	recordCount int64

	// Per-dimension distinct values
	dimensionValues map[string]map[string]struct{}

	// Per-metric running statistics
	metrics map[string]*metricStats
}

type metricStats struct {
	count  int64
	sum    float64
	min    float64
	max    float64
	sketch *ddsketch.DDSketch
}

// MetricStats is the reported distribution of one metric.
type MetricStats struct {
	Name  string
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	P50   float64
	P90   float64
	P95   float64
	P99   float64
}

// DimensionStats is the reported cardinality of one dimension.
type DimensionStats struct {
	Name        string
	Cardinality int
}

// Report is the full build-time stats report.
type Report struct {
	RecordCount int64
	Dimensions  []DimensionStats
	Metrics     []MetricStats
}

// NewCollector creates a collector for the given schema.
func NewCollector(dimensionNames []string, metricNames []string) *Collector {
	c := &Collector{
		dimensionValues: make(map[string]map[string]struct{}, len(dimensionNames)),
		metrics:         make(map[string]*metricStats, len(metricNames)),
	}
	for _, d := range dimensionNames {
		c.dimensionValues[d] = make(map[string]struct{})
	}
	for _, m := range metricNames {
		ms := &metricStats{
			min: math.MaxFloat64,
			max: -math.MaxFloat64,
		}
		// Sketch creation only fails for invalid accuracy; the default is
		// constant, so a nil sketch just disables quantiles.
		if sketch, err := ddsketch.NewDefaultDDSketch(config.DefaultSketchAccuracy); err == nil {
			ms.sketch = sketch
		}
		c.metrics[m] = ms
	}
	return c
}

// Observe records one ingested record.
func (c *Collector) Observe(r types.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordCount++

	for dimension, value := range r.Dimensions {
		if values, ok := c.dimensionValues[dimension]; ok {
			values[value] = struct{}{}
		}
	}

	for name, value := range r.Metrics {
		ms, ok := c.metrics[name]
		if !ok {
			continue
		}
		ms.count++
		ms.sum += value
		if value < ms.min {
			ms.min = value
		}
		if value > ms.max {
			ms.max = value
		}
		if ms.sketch != nil {
			ms.sketch.Add(value)
		}
	}
}

// RecordCount returns the number of records observed.
func (c *Collector) RecordCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordCount
}

// Report returns the accumulated statistics, ordered by the given schema.
func (c *Collector) Report(dimensionNames, metricNames []string) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := Report{RecordCount: c.recordCount}

	for _, d := range dimensionNames {
		report.Dimensions = append(report.Dimensions, DimensionStats{
			Name:        d,
			Cardinality: len(c.dimensionValues[d]),
		})
	}

	for _, m := range metricNames {
		ms, ok := c.metrics[m]
		if !ok {
			continue
		}
		out := MetricStats{Name: m, Count: ms.count, Sum: ms.sum}
		if ms.count > 0 {
			out.Min = ms.min
			out.Max = ms.max
		}
		if ms.sketch != nil && ms.count > 0 {
			out.P50, _ = ms.sketch.GetValueAtQuantile(0.50)
			out.P90, _ = ms.sketch.GetValueAtQuantile(0.90)
			out.P95, _ = ms.sketch.GetValueAtQuantile(0.95)
			out.P99, _ = ms.sketch.GetValueAtQuantile(0.99)
		}
		report.Metrics = append(report.Metrics, out)
	}

	return report
}
