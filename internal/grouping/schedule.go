package grouping

import (
	"slices"

	"github.com/towerworks/foundation-core/pkg/config"
)

// Schedule yields the overrun threshold of each group query. After a pick
// covering fewer towers than a tier's cutoff, the next query uses that
// tier's threshold; otherwise the baseline.
//
// Tiers whose cutoff exceeds the universe size are ignored. The gate
// keeps the three-tower site at the baseline after a pair pick instead of
// the <5 tier. It reaches past that case: with the default tiers and a
// universe of four, a first pick covering three towers is followed by the
// baseline, so the thresholds are [15 15] rather than [15 60].
type Schedule struct {
	baseline float64
	tiers    []config.CoverageTier
}

// NewSchedule builds the schedule for a universe of size universe.
func NewSchedule(c config.Coverage, universe int) Schedule {
	var tiers []config.CoverageTier
	for _, t := range c.Tiers {
		if t.Below <= universe {
			tiers = append(tiers, t)
		}
	}
	slices.SortFunc(tiers, func(a, b config.CoverageTier) int { return a.Below - b.Below })
	return Schedule{baseline: c.BaselineOverrunPct, tiers: tiers}
}

// Initial returns the threshold of the first query.
func (s Schedule) Initial() float64 {
	return s.baseline
}

// Next returns the threshold following a pick that covered coverage towers.
func (s Schedule) Next(coverage int) float64 {
	for _, t := range s.tiers {
		if coverage < t.Below {
			return t.OverrunPct
		}
	}
	return s.baseline
}
