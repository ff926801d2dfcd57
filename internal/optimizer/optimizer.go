// Package optimizer searches the design space of one foundation kind for
// each tower and keeps the best-ranked feasible designs.
package optimizer

import (
	"errors"
	"fmt"

	"github.com/towerworks/foundation-core/internal/geotech"
	"github.com/towerworks/foundation-core/internal/space"
	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
)

// ErrInvalidConfig is returned when the parameter set cannot drive a search.
var ErrInvalidConfig = errors.New("invalid optimizer configuration")

// Optimizer runs the generate, evaluate, rank loop for a single kind.
// It holds no per-run state and is safe for concurrent use.
type Optimizer struct {
	kind      models.Kind
	evaluator geotech.Evaluator
}

// Outcome is the result of one tower search.
type Outcome struct {
	Solutions []models.Solution
	Evaluated int
	Feasible  int
}

// New creates an optimizer for kind. A nil evaluator selects the
// reference formulas of the kind.
func New(kind models.Kind, evaluator geotech.Evaluator) (*Optimizer, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, &config.UnknownKindError{Kind: string(kind)})
	}
	if evaluator == nil {
		e, err := geotech.ForKind(kind)
		if err != nil {
			return nil, err
		}
		evaluator = e
	}
	return &Optimizer{kind: kind, evaluator: evaluator}, nil
}

// Kind returns the foundation kind searched by o.
func (o *Optimizer) Kind() models.Kind {
	return o.kind
}

// Optimize returns at most maxSolutions feasible designs for tower, best
// first. An empty result means no feasible design exists in the space.
func (o *Optimizer) Optimize(tower models.Tower, soil models.SoilProfile, loads models.Loads, params *config.Parameters, maxSolutions int) ([]models.Solution, error) {
	out, err := o.Run(tower, soil, loads, params, maxSolutions)
	if err != nil {
		return nil, err
	}
	return out.Solutions, nil
}

// Run is Optimize with evaluation counters.
func (o *Optimizer) Run(tower models.Tower, soil models.SoilProfile, loads models.Loads, params *config.Parameters, maxSolutions int) (Outcome, error) {
	if params == nil {
		return Outcome{}, fmt.Errorf("%w: parameters are required", ErrInvalidConfig)
	}
	if maxSolutions <= 0 {
		return Outcome{}, fmt.Errorf("%w: max solutions must be positive, got %d", ErrInvalidConfig, maxSolutions)
	}
	sp, err := space.ForKind(o.kind, params)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	// The caller's profile stays untouched; work on a local copy.
	local := soil.WithFill(tower.FillUnitWeight)
	if params.ExtendToRock {
		local = local.ExtendToRock()
	}

	var out Outcome
	var feasible []models.Solution
	ordinal := 0
	for g := range sp.All() {
		ordinal++
		out.Evaluated++
		res := o.evaluator.Evaluate(g, local, loads, params)
		if !res.Feasible {
			continue
		}
		feasible = append(feasible, models.Solution{
			Geometry: g,
			Result:   res,
			Rank: models.RankKey{
				Cost:    res.Cost,
				Margin:  Margin(res, params.Ranking),
				Ordinal: ordinal,
			},
		})
	}

	out.Feasible = len(feasible)
	rank(feasible, params.Ranking)
	if len(feasible) > maxSolutions {
		feasible = feasible[:maxSolutions:maxSolutions]
	}
	out.Solutions = feasible
	return out, nil
}
