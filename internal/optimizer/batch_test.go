package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/logger"
	"github.com/towerworks/foundation-core/pkg/models"
)

type mapSoil map[string]models.SoilProfile

func (m mapSoil) Profile(_ context.Context, t models.Tower) (models.SoilProfile, error) {
	p, ok := m[t.Name]
	if !ok {
		return models.SoilProfile{}, fmt.Errorf("no borehole for %s", t.Name)
	}
	return p, nil
}

type mapLoads map[string]models.Loads

func (m mapLoads) Loads(_ context.Context, t models.Tower) (models.Loads, error) {
	l, ok := m[t.LoadsKey()]
	if !ok {
		return models.Loads{}, fmt.Errorf("no loads for %s", t.Name)
	}
	return l, nil
}

type recordingSink struct {
	mu      sync.Mutex
	results map[string]models.TowerResult
	fail    error
}

func (s *recordingSink) RecordTower(_ context.Context, _ string, r models.TowerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if s.results == nil {
		s.results = make(map[string]models.TowerResult)
	}
	s.results[r.Tower.Name] = r
	return nil
}

func batchTowers() []models.Tower {
	return []models.Tower{
		{Name: "T1", FillUnitWeight: 17},
		{Name: "T2", Recommendations: []models.Kind{models.KindFooting}},
		{Name: "T3"},
		{Name: "T4", LoadsRef: "missing"},
		{Name: "T5", LoadsRef: "shared"},
	}
}

func newTestBatch(t *testing.T, e *lengthCost, sink TowerSink) *Batch {
	t.Helper()
	params := testParams()
	params.Workers = 3
	bad := testSoil()
	bad.Strata[1].Top = 5
	return &Batch{
		RunID:     "run-test",
		Optimizer: newTestOptimizer(t, e),
		Params:    params,
		Soil: mapSoil{
			"T1": testSoil(),
			"T2": testSoil(),
			"T3": bad,
			"T4": testSoil(),
			"T5": testSoil(),
		},
		Loads: mapLoads{
			"T1":     {Compression: 100},
			"T2":     {Compression: 100},
			"T3":     {Compression: 100},
			"shared": {Compression: 100},
		},
		Sink:   sink,
		Logger: logger.New("error", io.Discard),
	}
}

func TestBatchRun(t *testing.T) {
	e := &lengthCost{}
	sink := &recordingSink{}
	b := newTestBatch(t, e, sink)

	report, err := b.Run(context.Background(), batchTowers())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []models.TowerStatus{
		models.TowerSuccess,
		models.TowerNotApplicable,
		models.TowerProfileError,
		models.TowerEvaluationError,
		models.TowerSuccess,
	}
	if len(report.Results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(report.Results))
	}
	for i, r := range report.Results {
		if r.Tower.Name != batchTowers()[i].Name {
			t.Fatalf("result %d out of order: %s", i, r.Tower.Name)
		}
		if r.Status != want[i] {
			t.Errorf("%s: expected status %s, got %s (%s)", r.Tower.Name, want[i], r.Status, r.Error)
		}
		if r.Kind != models.KindPile {
			t.Errorf("%s: expected kind pile, got %s", r.Tower.Name, r.Kind)
		}
	}
	if report.Results[2].Error == "" {
		t.Error("expected profile error message")
	}

	// Only the two successful towers reach the evaluator.
	if e.calls.Load() != 18 {
		t.Fatalf("expected 18 evaluations, got %d", e.calls.Load())
	}

	s := report.Summary
	if s.Towers != 5 || s.Solved != 2 || s.ProfileErrors != 1 || s.EvaluationErrors != 1 || s.NotApplicable != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if len(sink.results) != 5 {
		t.Fatalf("expected sink to receive 5 towers, got %d", len(sink.results))
	}
	if report.RunID != "run-test" || report.Kind != models.KindPile {
		t.Fatalf("unexpected report identity %s/%s", report.RunID, report.Kind)
	}
}

func TestBatchFillOverride(t *testing.T) {
	b := newTestBatch(t, &lengthCost{}, nil)
	w := 21.0
	b.Params.FillUnitWeightOverride = &w

	towers := batchTowers()
	report, err := b.Run(context.Background(), towers)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, r := range report.Results {
		if r.Tower.FillUnitWeight != 21 {
			t.Fatalf("%s: expected overridden fill weight 21, got %.1f", r.Tower.Name, r.Tower.FillUnitWeight)
		}
	}
	if towers[0].FillUnitWeight != 17 {
		t.Fatal("input towers must not be modified")
	}
}

func TestBatchConfigError(t *testing.T) {
	e := &lengthCost{}
	b := newTestBatch(t, e, nil)
	b.Params.Pile.Diameter.Step = 0

	report, err := b.Run(context.Background(), batchTowers())
	if err != nil {
		t.Fatalf("config errors must not abort the batch: %v", err)
	}
	if report.Summary.ConfigErrors != 2 {
		t.Fatalf("expected 2 config errors, got %+v", report.Summary)
	}
	if e.calls.Load() != 0 {
		t.Fatalf("evaluator must not run with invalid config, got %d calls", e.calls.Load())
	}
}

func TestBatchOversizedSpace(t *testing.T) {
	e := &lengthCost{}
	b := newTestBatch(t, e, nil)
	b.Params.Pile.Length = config.Range{Min: 0, Max: 1e20, Step: 1}

	report, err := b.Run(context.Background(), batchTowers())
	if err != nil {
		t.Fatalf("an oversized space must not abort the batch: %v", err)
	}
	if report.Summary.ConfigErrors != 2 {
		t.Fatalf("expected 2 config errors, got %+v", report.Summary)
	}
	for _, r := range report.Results {
		if r.Status == models.TowerConfigError && !strings.Contains(r.Error, "max_candidates") {
			t.Fatalf("expected the candidate limit in the error, got %q", r.Error)
		}
	}
	if e.calls.Load() != 0 {
		t.Fatalf("evaluator must not run on an oversized space, got %d calls", e.calls.Load())
	}
}

func TestBatchSinkFailure(t *testing.T) {
	sinkErr := errors.New("disk full")
	b := newTestBatch(t, &lengthCost{}, &recordingSink{fail: sinkErr})

	_, err := b.Run(context.Background(), batchTowers())
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestBatchCancelled(t *testing.T) {
	b := newTestBatch(t, &lengthCost{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Run(ctx, batchTowers()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBatchRequiresCollaborators(t *testing.T) {
	b := &Batch{}
	if _, err := b.Run(context.Background(), batchTowers()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSummarizeNoSolution(t *testing.T) {
	s := Summarize([]models.TowerResult{
		{Status: models.TowerSuccess},
		{Status: models.TowerSuccess, Solutions: []models.Solution{{}}},
		{Status: models.TowerConfigError},
		{Status: models.TowerNoSolution},
	})
	if s.NoSolution != 2 || s.Solved != 1 || s.ConfigErrors != 1 || s.Towers != 4 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
