package grouping

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/towerworks/foundation-core/internal/geotech"
	"github.com/towerworks/foundation-core/internal/optimizer"
	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/logger"
	"github.com/towerworks/foundation-core/pkg/models"
)

// Builder derives group candidates by optimizing every micropile
// descriptor of the parameter catalog at every tower.
type Builder struct {
	Params    *config.Parameters
	Soil      optimizer.SoilProvider
	Loads     optimizer.LoadsProvider
	Evaluator geotech.Evaluator // optional, defaults to the micropile formulas
	Logger    *slog.Logger      // optional
}

// towerCosts is the cheapest feasible cost per descriptor at one tower.
type towerCosts struct {
	name  string
	costs []float64 // NaN where the descriptor has no feasible design
	excl  *Exclusion
}

// Build returns a catalog with one candidate per descriptor. A tower's
// baseline is its cheapest feasible design over all descriptors. Towers
// that do not recommend micropiles, lack data, or have no feasible design
// are recorded as exclusions.
func (b *Builder) Build(ctx context.Context, towers []models.Tower) (*Catalog, error) {
	if b.Params == nil || b.Soil == nil || b.Loads == nil {
		return nil, fmt.Errorf("%w: builder requires parameters, soil and loads providers", optimizer.ErrInvalidConfig)
	}
	if err := b.Params.ValidateFor(models.KindMicropile); err != nil {
		return nil, fmt.Errorf("%w: %w", optimizer.ErrInvalidConfig, err)
	}
	opt, err := optimizer.New(models.KindMicropile, b.Evaluator)
	if err != nil {
		return nil, err
	}
	log := b.Logger
	if log == nil {
		log = logger.Default
	}

	descriptors := b.Params.Micropile.Catalog
	perDescriptor := make([]*config.Parameters, len(descriptors))
	for i, d := range descriptors {
		perDescriptor[i] = withDescriptor(b.Params, d)
	}

	workers := max(b.Params.Workers, 1)
	rows := make([]towerCosts, len(towers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, tower := range towers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := b.tower(gctx, opt, tower, perDescriptor)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(descriptors))
	for i, d := range descriptors {
		candidates[i] = Candidate{ID: d.ID(), Descriptor: d, Costs: make(map[string]float64)}
	}
	baseline := make(map[string]float64)
	var excluded []Exclusion
	for _, row := range rows {
		if row.excl != nil {
			excluded = append(excluded, *row.excl)
			continue
		}
		best := math.Inf(1)
		for i, cost := range row.costs {
			if math.IsNaN(cost) {
				continue
			}
			candidates[i].Costs[row.name] = cost
			best = math.Min(best, cost)
		}
		if math.IsInf(best, 1) {
			excluded = append(excluded, Exclusion{Tower: row.name, Status: models.TowerNoSolution, Reason: "no feasible micropile design"})
			continue
		}
		baseline[row.name] = best
	}

	cat := NewCatalog(candidates, baseline)
	cat.excluded = excluded
	log.Info("group catalog built", "candidates", len(candidates), "towers", len(baseline), "excluded", len(excluded))
	return cat, nil
}

func (b *Builder) tower(ctx context.Context, opt *optimizer.Optimizer, tower models.Tower, perDescriptor []*config.Parameters) (towerCosts, error) {
	if w := b.Params.FillUnitWeightOverride; w != nil {
		tower = tower.WithFillUnitWeight(*w)
	}
	row := towerCosts{name: tower.Name}
	if !tower.Recommends(models.KindMicropile) {
		row.excl = &Exclusion{Tower: tower.Name, Status: models.TowerNotApplicable, Reason: "micropiles not recommended"}
		return row, nil
	}
	soil, err := b.Soil.Profile(ctx, tower)
	if err == nil {
		err = soil.Validate()
	}
	if err != nil {
		row.excl = &Exclusion{Tower: tower.Name, Status: models.TowerProfileError, Reason: err.Error()}
		return row, nil
	}
	loads, err := b.Loads.Loads(ctx, tower)
	if err != nil {
		row.excl = &Exclusion{Tower: tower.Name, Status: models.TowerEvaluationError, Reason: err.Error()}
		return row, nil
	}

	row.costs = make([]float64, len(perDescriptor))
	for i, params := range perDescriptor {
		sols, err := opt.Optimize(tower, soil, loads, params, 1)
		if err != nil {
			return row, fmt.Errorf("tower %s: %w", tower.Name, err)
		}
		row.costs[i] = math.NaN()
		if len(sols) > 0 {
			row.costs[i] = sols[0].Result.Cost
		}
	}
	return row, nil
}

// withDescriptor returns a shallow copy of params whose micropile catalog
// holds only d.
func withDescriptor(params *config.Parameters, d models.MicropileSpec) *config.Parameters {
	p := *params
	ms := *params.Micropile
	ms.Catalog = []models.MicropileSpec{d}
	p.Micropile = &ms
	return &p
}
