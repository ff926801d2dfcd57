package grouping

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/towerworks/foundation-core/pkg/models"
)

// overrunEpsilon absorbs rounding when comparing an overrun to its threshold.
const overrunEpsilon = 1e-9

// Candidate is a possible shared installation: one micropile descriptor
// and the cost of its cheapest feasible design at each tower it can serve.
type Candidate struct {
	ID         string
	Descriptor models.MicropileSpec
	Costs      map[string]float64
}

// Exclusion records a tower that could not enter any candidate.
type Exclusion struct {
	Tower  string             `json:"tower"`
	Status models.TowerStatus `json:"status"`
	Reason string             `json:"reason"`
}

// Catalog is an in-memory GroupQuery over a fixed candidate set.
type Catalog struct {
	candidates []Candidate
	baseline   map[string]float64
	excluded   []Exclusion
}

// NewCatalog creates a catalog. baseline maps each tower to the cost its
// group membership is compared against.
func NewCatalog(candidates []Candidate, baseline map[string]float64) *Catalog {
	cands := slices.Clone(candidates)
	slices.SortFunc(cands, func(a, b Candidate) int { return cmp.Compare(a.ID, b.ID) })
	return &Catalog{candidates: cands, baseline: maps.Clone(baseline)}
}

// Candidates returns the candidates ordered by id.
func (c *Catalog) Candidates() []Candidate {
	return slices.Clone(c.candidates)
}

// Baseline returns the baseline cost of tower.
func (c *Catalog) Baseline(tower string) (float64, bool) {
	v, ok := c.baseline[tower]
	return v, ok
}

// Excluded returns the towers that no candidate can serve and why.
func (c *Catalog) Excluded() []Exclusion {
	return slices.Clone(c.excluded)
}

// Towers returns every tower served by at least one candidate, sorted.
func (c *Catalog) Towers() []string {
	seen := make(map[string]struct{})
	for _, cand := range c.candidates {
		for t := range cand.Costs {
			seen[t] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// BestGroup implements GroupQuery. Among unselected candidates it builds
// the group of still uncovered towers, keeps those whose overrun over the
// summed baseline is within thresholdPct, and returns the one with the
// highest coverage, then the lowest cost, then the smallest id.
func (c *Catalog) BestGroup(ctx context.Context, state CoverageState, thresholdPct float64, _ string) (models.Group, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Group{}, false, err
	}

	var best models.Group
	found := false
	for _, cand := range c.candidates {
		if state.IsSelected(cand.ID) {
			continue
		}
		g, ok := c.group(cand, state)
		if !ok || g.OverrunPct > thresholdPct+overrunEpsilon {
			continue
		}
		if !found || better(g, best) {
			best, found = g, true
		}
	}
	return best, found, nil
}

func (c *Catalog) group(cand Candidate, state CoverageState) (models.Group, bool) {
	var towers []string
	for t := range cand.Costs {
		if !state.IsCovered(t) {
			towers = append(towers, t)
		}
	}
	if len(towers) == 0 {
		return models.Group{}, false
	}
	slices.Sort(towers)

	g := models.Group{
		ID:         cand.ID,
		Descriptor: cand.Descriptor,
		Towers:     towers,
		Coverage:   len(towers),
	}
	for _, t := range towers {
		g.Cost += cand.Costs[t]
		g.BaselineCost += c.baseline[t]
	}
	if g.BaselineCost > 0 {
		g.OverrunPct = (g.Cost - g.BaselineCost) / g.BaselineCost * 100
	}
	return g, true
}

func better(a, b models.Group) bool {
	if a.Coverage != b.Coverage {
		return a.Coverage > b.Coverage
	}
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	return a.ID < b.ID
}
