package models

import "math"

// CheckMode names a failure mode verified by an evaluator.
type CheckMode string

const (
	CheckCompression CheckMode = "compression"
	CheckTension     CheckMode = "tension"
	CheckOverturning CheckMode = "overturning"
	CheckLateral     CheckMode = "lateral"
)

// Check is one computed factor of safety against its required minimum.
type Check struct {
	Mode     CheckMode `json:"mode"`
	FoS      float64   `json:"fos"`
	Required float64   `json:"required"`
}

// Passed reports whether the computed factor reaches the requirement.
func (c Check) Passed() bool {
	return c.FoS >= c.Required
}

// Ratio returns FoS / Required, the margin for this mode.
func (c Check) Ratio() float64 {
	if c.Required <= 0 {
		return math.Inf(1)
	}
	return c.FoS / c.Required
}

// FeasibilityResult is produced once per candidate and never mutated.
type FeasibilityResult struct {
	Feasible      bool    `json:"feasible"`
	Checks        []Check `json:"checks,omitempty"`
	Settlement    float64 `json:"settlement"`     // mm
	MaxSettlement float64 `json:"max_settlement"` // mm
	Cost          float64 `json:"cost"`
	Volume        float64 `json:"volume"` // m3
	Reason        string  `json:"reason,omitempty"`
}

// Infeasible returns a failed result carrying reason.
func Infeasible(reason string) FeasibilityResult {
	return FeasibilityResult{Feasible: false, Reason: reason}
}

// Check returns the check for mode, if present.
func (r FeasibilityResult) Check(mode CheckMode) (Check, bool) {
	for _, c := range r.Checks {
		if c.Mode == mode {
			return c, true
		}
	}
	return Check{}, false
}

// RankKey orders feasible solutions: lower cost first, then larger
// safety margin, then generation order.
type RankKey struct {
	Cost    float64 `json:"cost"`
	Margin  float64 `json:"margin"`
	Ordinal int     `json:"ordinal"`
}

// Solution is a feasible candidate with its evaluation and rank key.
type Solution struct {
	Geometry Geometry          `json:"geometry"`
	Result   FeasibilityResult `json:"result"`
	Rank     RankKey           `json:"rank"`
}

// Group is a shared micropile installation covering a set of towers.
type Group struct {
	ID           string        `json:"id"`
	Descriptor   MicropileSpec `json:"descriptor"`
	Towers       []string      `json:"towers"`
	Coverage     int           `json:"coverage"`
	Cost         float64       `json:"cost"`
	BaselineCost float64       `json:"baseline_cost"`
	OverrunPct   float64       `json:"overrun_pct"`
}

// TowerStatus is the outcome class of one tower in a batch.
type TowerStatus string

const (
	TowerSuccess         TowerStatus = "success"
	TowerProfileError    TowerStatus = "profile_error"
	TowerEvaluationError TowerStatus = "evaluation_error"
	TowerConfigError     TowerStatus = "config_error"
	TowerNotApplicable   TowerStatus = "not_applicable"
	// TowerNoSolution marks a tower left out of a group catalog because
	// no candidate design can serve it.
	TowerNoSolution TowerStatus = "no_solution"
)

// TowerResult is the per-tower outcome of a batch run. A success with no
// solutions means no feasible design was found.
type TowerResult struct {
	Tower     Tower       `json:"tower"`
	Kind      Kind        `json:"kind"`
	Status    TowerStatus `json:"status"`
	Solutions []Solution  `json:"solutions,omitempty"`
	Evaluated int         `json:"evaluated"`
	Error     string      `json:"error,omitempty"`
}

// Solved reports whether at least one feasible design was found.
func (r TowerResult) Solved() bool {
	return r.Status == TowerSuccess && len(r.Solutions) > 0
}
