package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/towerworks/foundation-core/internal/grouping"
	"github.com/towerworks/foundation-core/internal/optimizer"
	"github.com/towerworks/foundation-core/pkg/models"
)

func TestCollectorRecordAndSeries(t *testing.T) {
	c := NewCollector()

	now := time.Now()
	c.Record("candidates", 10, now, nil)
	c.Record("candidates", 20, now.Add(time.Second), nil)
	c.Record("candidates", 30, now.Add(2*time.Second), map[string]string{"kind": "pile"})

	points := c.Series("candidates", nil)
	if len(points) != 2 {
		t.Fatalf("expected 2 unlabelled points, got %d", len(points))
	}
	if points[0].Value != 10 || points[1].Value != 20 {
		t.Fatalf("unexpected values %v, %v", points[0].Value, points[1].Value)
	}

	labelled := c.Series("candidates", map[string]string{"kind": "pile"})
	if len(labelled) != 1 || labelled[0].Labels["kind"] != "pile" {
		t.Fatalf("unexpected labelled series %+v", labelled)
	}
	labelled[0].Labels["kind"] = "footing"
	if c.Series("candidates", map[string]string{"kind": "pile"})[0].Labels["kind"] != "pile" {
		t.Fatal("Series must return copies")
	}
	if c.Series("missing", nil) != nil {
		t.Fatal("expected nil series for unknown metric")
	}
}

func TestCollectorLabelOrder(t *testing.T) {
	c := NewCollector()
	c.RecordNow("m", 1, map[string]string{"a": "1", "b": "2"})
	c.RecordNow("m", 2, map[string]string{"b": "2", "a": "1"})

	agg := c.Aggregation("m", map[string]string{"a": "1", "b": "2"})
	if agg == nil || agg.Count != 2 {
		t.Fatalf("label order must not split series, got %+v", agg)
	}
}

func TestCollectorAggregation(t *testing.T) {
	c := NewCollector()
	for _, v := range []float64{10, 20, 30, 40, 50} {
		c.RecordNow("duration", v, nil)
	}

	got := c.Aggregation("duration", nil)
	want := &Aggregation{Count: 5, Sum: 150, Min: 10, Max: 50, Mean: 30, P50: 30, P95: 48, P99: 49.6}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b float64) bool { return a-b < 1e-9 && b-a < 1e-9 })); diff != "" {
		t.Fatalf("aggregation mismatch (-want +got):\n%s", diff)
	}
	if c.Aggregation("missing", nil) != nil {
		t.Fatal("expected nil aggregation for unknown metric")
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []float64{10}, 0.5, 10},
		{"two values", []float64{10, 20}, 0.5, 15},
		{"odd count", []float64{10, 20, 30, 40, 50}, 0.5, 30},
		{"top", []float64{10, 20, 30}, 1, 30},
	}
	for _, tt := range tests {
		if got := percentile(tt.values, tt.p); got != tt.want {
			t.Errorf("%s: percentile = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCollectorSummaryAcrossLabels(t *testing.T) {
	c := NewCollector()
	c.RecordNow(MetricRunCount, 1, RunLabels("optimize", "pile", "completed"))
	c.RecordNow(MetricRunCount, 1, RunLabels("group", "micropile", "failed"))

	s := c.Summary()
	agg := s.Metrics[MetricRunCount]
	if agg == nil || agg.Count != 2 || agg.Sum != 2 {
		t.Fatalf("expected 2 runs across labels, got %+v", agg)
	}
	if diff := cmp.Diff([]string{MetricRunCount}, c.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	c.Clear()
	if len(c.Summary().Metrics) != 0 || len(c.Names()) != 0 {
		t.Fatal("Clear left observations behind")
	}
}

func TestCollectorConcurrentRecord(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordNow("m", 1, nil)
			}
		}()
	}
	wg.Wait()
	if agg := c.Aggregation("m", nil); agg.Count != 800 {
		t.Fatalf("expected 800 points, got %d", agg.Count)
	}
}

func TestRecordRunHelpers(t *testing.T) {
	c := NewCollector()
	labels := RunLabels("optimize", "footing", "completed")
	RecordRun(c, 1500*time.Millisecond, labels)

	if agg := c.Aggregation(MetricRunDurationMs, labels); agg == nil || agg.Max != 1500 {
		t.Fatalf("expected 1500ms duration, got %+v", agg)
	}

	RecordBatch(c, &optimizer.Report{
		Kind: models.KindFooting,
		Results: []models.TowerResult{
			{Kind: models.KindFooting, Status: models.TowerSuccess, Evaluated: 120, Solutions: make([]models.Solution, 3)},
			{Kind: models.KindFooting, Status: models.TowerProfileError},
		},
	})
	ok := map[string]string{"kind": "footing", "status": "success"}
	if agg := c.Aggregation(MetricCandidatesEvaluated, ok); agg == nil || agg.Sum != 120 {
		t.Fatalf("unexpected candidates aggregation %+v", agg)
	}
	if agg := c.Aggregation(MetricSolutionsKept, ok); agg == nil || agg.Sum != 3 {
		t.Fatalf("unexpected solutions aggregation %+v", agg)
	}

	spec := models.MicropileSpec{Type: "A", Resistance: 500, InjectionProcess: "IGU", Bar: "B1"}
	RecordCoverage(c, &grouping.CoverageReport{
		Picks:     []grouping.Pick{{Iteration: 1, Group: models.Group{Descriptor: spec, OverrunPct: 4}}},
		Uncovered: []string{"T-9"},
	})
	if agg := c.Aggregation(MetricGroupOverrunPct, map[string]string{"descriptor": spec.ID()}); agg == nil || agg.Max != 4 {
		t.Fatalf("unexpected overrun aggregation %+v", agg)
	}
	if agg := c.Aggregation(MetricTowersUncovered, nil); agg == nil || agg.Sum != 1 {
		t.Fatalf("unexpected uncovered aggregation %+v", agg)
	}

	RecordBatch(c, nil)
	RecordCoverage(c, nil)
}
