// Package metrics keeps in-process statistics about design runs: how long
// they take, how many candidates they evaluate and how groups turn out.
package metrics

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// Point is one recorded observation.
type Point struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Aggregation is a statistical summary of a set of points.
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Summary aggregates every metric across all of its label sets.
type Summary struct {
	Since   time.Time               `json:"since"`
	Metrics map[string]*Aggregation `json:"metrics"`
}

// Collector stores observations per metric name and label set. It is safe
// for concurrent use.
type Collector struct {
	mu    sync.RWMutex
	since time.Time

	// metric name -> label key -> points
	series map[string]map[string][]Point
}

func NewCollector() *Collector {
	return &Collector{
		since:  time.Now(),
		series: make(map[string]map[string][]Point),
	}
}

// Record stores value under name and labels at timestamp.
func (c *Collector) Record(name string, value float64, timestamp time.Time, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if c.series[name] == nil {
		c.series[name] = make(map[string][]Point)
	}
	c.series[name][key] = append(c.series[name][key], Point{
		Timestamp: timestamp,
		Value:     value,
		Labels:    maps.Clone(labels),
	})
}

// RecordNow records value at the current time.
func (c *Collector) RecordNow(name string, value float64, labels map[string]string) {
	c.Record(name, value, time.Now(), labels)
}

// Series returns a copy of the points recorded under name and labels.
func (c *Collector) Series(name string, labels map[string]string) []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := c.series[name][labelKey(labels)]
	if len(points) == 0 {
		return nil
	}
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Timestamp: p.Timestamp, Value: p.Value, Labels: maps.Clone(p.Labels)}
	}
	return out
}

// Aggregation summarizes the points of one label set, or returns nil when
// none were recorded.
func (c *Collector) Aggregation(name string, labels map[string]string) *Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return aggregate(c.series[name][labelKey(labels)])
}

// Summary aggregates each metric over all label sets.
func (c *Collector) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Summary{Since: c.since, Metrics: make(map[string]*Aggregation, len(c.series))}
	for name, byLabel := range c.series {
		var all []Point
		for _, points := range byLabel {
			all = append(all, points...)
		}
		if agg := aggregate(all); agg != nil {
			s.Metrics[name] = agg
		}
	}
	return s
}

// Names returns the recorded metric names in sorted order.
func (c *Collector) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.series))
}

// Clear drops every observation.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = make(map[string]map[string][]Point)
	c.since = time.Now()
}

func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

func aggregate(points []Point) *Aggregation {
	if len(points) == 0 {
		return nil
	}
	values := make([]float64, len(points))
	var sum float64
	for i, p := range points {
		values[i] = p.Value
		sum += p.Value
	}
	sort.Float64s(values)

	return &Aggregation{
		Count: int64(len(values)),
		Sum:   sum,
		Min:   values[0],
		Max:   values[len(values)-1],
		Mean:  sum / float64(len(values)),
		P50:   percentile(values, 0.50),
		P95:   percentile(values, 0.95),
		P99:   percentile(values, 0.99),
	}
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
