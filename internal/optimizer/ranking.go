package optimizer

import (
	"cmp"
	"math"
	"slices"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

// Margin collapses the per-mode FoS/required ratios of res into one safety
// margin using the configured rule. A result without checks has margin 0.
func Margin(res models.FeasibilityResult, r config.Ranking) float64 {
	if len(res.Checks) == 0 {
		return 0
	}

	switch r.Margin {
	case config.MarginWeightedMean:
		ratios := make([]float64, len(res.Checks))
		weights := make([]float64, len(res.Checks))
		for i, c := range res.Checks {
			ratios[i] = c.Ratio()
			weights[i] = 1
			if w, ok := r.Weights[c.Mode]; ok {
				weights[i] = w
			}
		}
		return utils.WeightedMean(ratios, weights)
	default:
		m := math.Inf(1)
		for _, c := range res.Checks {
			m = math.Min(m, c.Ratio())
		}
		return m
	}
}

// costBucket maps a cost onto the tolerance grid so that costs within one
// bucket compare equal. With zero tolerance only identical costs tie.
func costBucket(cost, tolerance float64) float64 {
	if tolerance <= 0 {
		return cost
	}
	return math.Round(cost / tolerance)
}

// rank sorts solutions best-first: cost bucket ascending, margin
// descending, generation ordinal ascending.
func rank(solutions []models.Solution, r config.Ranking) {
	slices.SortFunc(solutions, func(a, b models.Solution) int {
		if c := cmp.Compare(costBucket(a.Rank.Cost, r.CostTolerance), costBucket(b.Rank.Cost, r.CostTolerance)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Rank.Margin, a.Rank.Margin); c != 0 {
			return c
		}
		return cmp.Compare(a.Rank.Ordinal, b.Rank.Ordinal)
	})
}
