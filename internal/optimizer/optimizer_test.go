package optimizer

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/towerworks/foundation-core/internal/geotech"
	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testParams() *config.Parameters {
	p := config.DefaultParameters()
	p.Pile = &config.PileSpace{
		Diameter:        config.Range{Min: 0.4, Max: 0.6, Step: 0.1},
		Length:          config.Range{Min: 6, Max: 10, Step: 2},
		StartDepth:      config.Range{Min: 0, Max: 0, Step: 1},
		PedestalHeights: []float64{0.5},
	}
	return p
}

func testSoil() models.SoilProfile {
	return models.SoilProfile{
		Strata: []models.Stratum{
			{Top: 0, Bottom: 4, UnitWeight: 18, Cohesion: 10, FrictionAngle: 28, Poisson: 0.3, Modulus: 15},
			{Top: 4, Bottom: 12, UnitWeight: 19, Cohesion: 5, FrictionAngle: 32, Poisson: 0.3, Modulus: 40},
		},
		RockDepth: 16,
	}
}

// lengthCost prices a pile by its length only, so equal lengths tie on
// cost, and grades the margin by diameter. Diameters below 0.45 fail.
type lengthCost struct {
	calls atomic.Int64
}

func (e *lengthCost) Evaluate(g models.Geometry, _ models.SoilProfile, _ models.Loads, params *config.Parameters) models.FeasibilityResult {
	e.calls.Add(1)
	c := models.Check{Mode: models.CheckCompression, FoS: g.Diameter * 10, Required: params.Safety.Compression}
	return models.FeasibilityResult{
		Feasible: g.Diameter > 0.45,
		Checks:   []models.Check{c},
		Cost:     g.Length,
	}
}

func newTestOptimizer(t *testing.T, e geotech.Evaluator) *Optimizer {
	t.Helper()
	o, err := New(models.KindPile, e)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestOptimizeRanking(t *testing.T) {
	e := &lengthCost{}
	o := newTestOptimizer(t, e)

	out, err := o.Run(models.Tower{Name: "T1"}, testSoil(), models.Loads{Compression: 100}, testParams(), 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Evaluated != 9 || e.calls.Load() != 9 {
		t.Fatalf("expected 9 evaluations, got %d (calls %d)", out.Evaluated, e.calls.Load())
	}
	if out.Feasible != 6 || len(out.Solutions) != 6 {
		t.Fatalf("expected 6 feasible solutions, got %d/%d", out.Feasible, len(out.Solutions))
	}

	first := out.Solutions[0].Geometry
	if first.Length != 6 || first.Diameter != 0.6 {
		t.Fatalf("expected cheapest, widest pile first, got %v", first)
	}
	for i := 1; i < len(out.Solutions); i++ {
		prev, cur := out.Solutions[i-1].Rank, out.Solutions[i].Rank
		if cur.Cost < prev.Cost {
			t.Fatalf("solution %d: cost decreased %.2f -> %.2f", i, prev.Cost, cur.Cost)
		}
		if cur.Cost == prev.Cost && cur.Margin > prev.Margin {
			t.Fatalf("solution %d: margin increased within equal cost %.3f -> %.3f", i, prev.Margin, cur.Margin)
		}
	}
}

func TestOptimizeTruncates(t *testing.T) {
	o := newTestOptimizer(t, &lengthCost{})
	sols, err := o.Optimize(models.Tower{Name: "T1"}, testSoil(), models.Loads{}, testParams(), 2)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(sols) != 2 {
		t.Fatalf("expected 2 solutions, got %d", len(sols))
	}
	if sols[0].Geometry.Length != 6 || sols[1].Geometry.Length != 6 {
		t.Fatalf("expected the two 6 m piles, got %v and %v", sols[0].Geometry, sols[1].Geometry)
	}
}

func TestOptimizeIdempotent(t *testing.T) {
	o := newTestOptimizer(t, nil)
	params := testParams()
	loads := models.Loads{Compression: 320, Tension: 260, Shear: 35}
	tower := models.Tower{Name: "T1", FillUnitWeight: 17}

	first, err := o.Optimize(tower, testSoil(), loads, params, 5)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	second, err := o.Optimize(tower, testSoil(), loads, params, 5)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated search differs (-first +second):\n%s", diff)
	}
}

func TestOptimizeEmptySpace(t *testing.T) {
	e := &lengthCost{}
	o := newTestOptimizer(t, e)
	params := testParams()
	params.Pile.Length = config.Range{Min: 10, Max: 6, Step: 2}

	sols, err := o.Optimize(models.Tower{Name: "T1"}, testSoil(), models.Loads{}, params, 5)
	if err != nil {
		t.Fatalf("empty space must not be an error: %v", err)
	}
	if len(sols) != 0 {
		t.Fatalf("expected no solutions, got %d", len(sols))
	}
	if e.calls.Load() != 0 {
		t.Fatalf("evaluator must not be called for an empty space, got %d calls", e.calls.Load())
	}
}

func TestOptimizeNoFeasible(t *testing.T) {
	never := geotech.EvaluatorFunc(func(models.Geometry, models.SoilProfile, models.Loads, *config.Parameters) models.FeasibilityResult {
		return models.Infeasible("nope")
	})
	o := newTestOptimizer(t, never)
	out, err := o.Run(models.Tower{Name: "T1"}, testSoil(), models.Loads{}, testParams(), 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Solutions) != 0 || out.Evaluated != 9 {
		t.Fatalf("expected 0 solutions after 9 evaluations, got %d/%d", len(out.Solutions), out.Evaluated)
	}
}

func TestOptimizeInvalidConfig(t *testing.T) {
	o := newTestOptimizer(t, &lengthCost{})

	tests := []struct {
		name   string
		params func() *config.Parameters
		max    int
	}{
		{"nil parameters", func() *config.Parameters { return nil }, 5},
		{"zero max solutions", testParams, 0},
		{"missing block", func() *config.Parameters {
			p := testParams()
			p.Pile = nil
			return p
		}, 5},
		{"zero step", func() *config.Parameters {
			p := testParams()
			p.Pile.Diameter.Step = 0
			return p
		}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Optimize(models.Tower{Name: "T1"}, testSoil(), models.Loads{}, tt.params(), tt.max)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(models.Kind("raft"), nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	var unknown *config.UnknownKindError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownKindError in chain, got %v", err)
	}
}

func TestOptimizeLocalProfile(t *testing.T) {
	var seen models.SoilProfile
	capture := geotech.EvaluatorFunc(func(_ models.Geometry, soil models.SoilProfile, _ models.Loads, _ *config.Parameters) models.FeasibilityResult {
		seen = soil
		return models.Infeasible("capture only")
	})
	o := newTestOptimizer(t, capture)
	params := testParams()
	params.ExtendToRock = true

	soil := testSoil()
	if _, err := o.Optimize(models.Tower{Name: "T1", FillUnitWeight: 19.5}, soil, models.Loads{}, params, 5); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if seen.Depth() != 16 {
		t.Fatalf("expected evaluator to see profile extended to rock at 16 m, got %.1f", seen.Depth())
	}
	if seen.FillUnitWeight() != 19.5 {
		t.Fatalf("expected tower fill unit weight, got %.1f", seen.FillUnitWeight())
	}
	if diff := cmp.Diff(testSoil(), soil); diff != "" {
		t.Fatalf("caller profile mutated (-want +got):\n%s", diff)
	}
}

func TestMargin(t *testing.T) {
	res := models.FeasibilityResult{Checks: []models.Check{
		{Mode: models.CheckCompression, FoS: 5, Required: 2.5}, // 2.0
		{Mode: models.CheckTension, FoS: 3, Required: 2},       // 1.5
	}}

	tests := []struct {
		name    string
		ranking config.Ranking
		want    float64
	}{
		{"min", config.Ranking{Margin: config.MarginMin}, 1.5},
		{"default rule", config.Ranking{}, 1.5},
		{"equal weights", config.Ranking{Margin: config.MarginWeightedMean}, 1.75},
		{"tension weighted", config.Ranking{
			Margin:  config.MarginWeightedMean,
			Weights: map[models.CheckMode]float64{models.CheckTension: 3},
		}, (2.0 + 3*1.5) / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Margin(res, tt.ranking); math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("expected margin %.4f, got %.4f", tt.want, got)
			}
		})
	}

	if got := Margin(models.FeasibilityResult{}, config.Ranking{}); got != 0 {
		t.Fatalf("expected zero margin without checks, got %f", got)
	}
}

func TestRankCostTolerance(t *testing.T) {
	solutions := []models.Solution{
		{Rank: models.RankKey{Cost: 100.001, Margin: 1.2, Ordinal: 1}},
		{Rank: models.RankKey{Cost: 100.002, Margin: 1.8, Ordinal: 2}},
		{Rank: models.RankKey{Cost: 90, Margin: 1.0, Ordinal: 3}},
		{Rank: models.RankKey{Cost: 100.002, Margin: 1.8, Ordinal: 0}},
	}
	rank(solutions, config.Ranking{CostTolerance: 0.01})

	var got []int
	for _, s := range solutions {
		got = append(got, s.Rank.Ordinal)
	}
	want := []int{3, 0, 2, 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestOptimizeReferenceEvaluator(t *testing.T) {
	params := testParams()
	params.Pile = &config.PileSpace{
		Diameter:        config.Range{Min: 0.4, Max: 1.0, Step: 0.1},
		Length:          config.Range{Min: 6, Max: 12, Step: 2},
		StartDepth:      config.Range{Min: 0, Max: 1, Step: 0.5},
		PedestalHeights: []float64{0.5},
	}
	o := newTestOptimizer(t, nil)
	loads := models.Loads{Compression: 320, Tension: 260, Shear: 35}

	sols, err := o.Optimize(models.Tower{Name: "T1", FillUnitWeight: 17}, testSoil(), loads, params, 3)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(sols) == 0 {
		t.Fatal("expected at least one feasible pile")
	}
	for _, s := range sols {
		if !s.Result.Feasible {
			t.Fatalf("infeasible solution returned: %v", s.Geometry)
		}
		for _, c := range s.Result.Checks {
			if !c.Passed() {
				t.Fatalf("solution %v fails %s", s.Geometry, c.Mode)
			}
		}
	}
}
