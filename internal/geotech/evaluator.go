// Package geotech checks candidate foundation geometries against
// geotechnical safety and settlement criteria.
package geotech

import (
	"fmt"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

// Evaluator decides whether one candidate geometry is feasible. It must be
// pure: no mutation of its inputs and the same result for the same inputs.
type Evaluator interface {
	Evaluate(g models.Geometry, soil models.SoilProfile, loads models.Loads, params *config.Parameters) models.FeasibilityResult
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(g models.Geometry, soil models.SoilProfile, loads models.Loads, params *config.Parameters) models.FeasibilityResult

func (f EvaluatorFunc) Evaluate(g models.Geometry, soil models.SoilProfile, loads models.Loads, params *config.Parameters) models.FeasibilityResult {
	return f(g, soil, loads, params)
}

// ForKind returns the reference evaluator for kind, wrapped with Safe.
func ForKind(kind models.Kind) (Evaluator, error) {
	switch kind {
	case models.KindFooting:
		return Safe(EvaluatorFunc(evaluateFooting)), nil
	case models.KindDrilledPier:
		return Safe(EvaluatorFunc(evaluatePier)), nil
	case models.KindPile:
		return Safe(EvaluatorFunc(evaluatePile)), nil
	case models.KindMicropile:
		return Safe(EvaluatorFunc(evaluateMicropile)), nil
	default:
		return nil, &config.UnknownKindError{Kind: string(kind)}
	}
}

// Safe wraps e so that a panic or a non-finite number inside the formulas
// turns into a failed result instead of escaping to the caller.
func Safe(e Evaluator) Evaluator {
	return safeEvaluator{inner: e}
}

type safeEvaluator struct {
	inner Evaluator
}

func (s safeEvaluator) Evaluate(g models.Geometry, soil models.SoilProfile, loads models.Loads, params *config.Parameters) (res models.FeasibilityResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.Infeasible(fmt.Sprintf("evaluator fault: %v", r))
		}
	}()

	res = s.inner.Evaluate(g, soil, loads, params)
	if !utils.Finite(res.Settlement, res.Cost, res.Volume) {
		return models.Infeasible("non-finite settlement, cost or volume")
	}
	for _, c := range res.Checks {
		if !utils.Finite(c.FoS) {
			return models.Infeasible(fmt.Sprintf("non-finite factor of safety for %s", c.Mode))
		}
	}
	return res
}

// verdict accumulates checks for one candidate and produces the result.
type verdict struct {
	safety config.Safety
	checks []models.Check
}

func newVerdict(params *config.Parameters) *verdict {
	return &verdict{safety: params.Safety}
}

// check records capacity/demand for mode. A non-positive demand means the
// mode is not acting on this tower and is left out.
func (v *verdict) check(mode models.CheckMode, capacity, demand float64) {
	if demand <= 0 {
		return
	}
	v.checks = append(v.checks, models.Check{
		Mode:     mode,
		FoS:      capacity / demand,
		Required: v.safety.Required(mode),
	})
}

func (v *verdict) result(settlement, cost, volume float64) models.FeasibilityResult {
	res := models.FeasibilityResult{
		Feasible:      true,
		Checks:        v.checks,
		Settlement:    settlement,
		MaxSettlement: v.safety.MaxSettlement,
		Cost:          cost,
		Volume:        volume,
	}
	for _, c := range v.checks {
		if !c.Passed() {
			res.Feasible = false
			res.Reason = fmt.Sprintf("%s FoS %.2f below %.2f", c.Mode, c.FoS, c.Required)
			return res
		}
	}
	if settlement > v.safety.MaxSettlement {
		res.Feasible = false
		res.Reason = fmt.Sprintf("settlement %.1f mm above %.1f mm", settlement, v.safety.MaxSettlement)
	}
	return res
}
