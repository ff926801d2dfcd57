// Package grouping selects shared micropile installations that cover a
// tower universe with as few groups as possible.
package grouping

import (
	"maps"
	"slices"

	"github.com/towerworks/foundation-core/pkg/models"
)

// CoverageState is the covered tower set and the selected group set of
// one selector run. It is a value: With returns a new state and leaves
// the receiver unchanged.
type CoverageState struct {
	covered  map[string]struct{}
	selected map[string]struct{}
}

// NewCoverageState returns an empty state.
func NewCoverageState() CoverageState {
	return CoverageState{
		covered:  make(map[string]struct{}),
		selected: make(map[string]struct{}),
	}
}

// IsCovered reports whether tower is already served.
func (s CoverageState) IsCovered(tower string) bool {
	_, ok := s.covered[tower]
	return ok
}

// IsSelected reports whether the group id was already picked.
func (s CoverageState) IsSelected(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// CoveredCount returns the number of covered towers.
func (s CoverageState) CoveredCount() int {
	return len(s.covered)
}

// Covered returns the covered towers in sorted order.
func (s CoverageState) Covered() []string {
	return slices.Sorted(maps.Keys(s.covered))
}

// Selected returns the selected group ids in sorted order.
func (s CoverageState) Selected() []string {
	return slices.Sorted(maps.Keys(s.selected))
}

// NetNew returns the towers of g that are in universe and not yet covered,
// in the order g lists them.
func (s CoverageState) NetNew(g models.Group, universe map[string]struct{}) []string {
	var out []string
	for _, t := range g.Towers {
		if _, in := universe[t]; !in || s.IsCovered(t) || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// With returns the state after picking group id, covering towers.
func (s CoverageState) With(id string, towers []string) CoverageState {
	next := CoverageState{
		covered:  maps.Clone(s.covered),
		selected: maps.Clone(s.selected),
	}
	if next.covered == nil {
		next.covered = make(map[string]struct{})
	}
	if next.selected == nil {
		next.selected = make(map[string]struct{})
	}
	for _, t := range towers {
		next.covered[t] = struct{}{}
	}
	next.selected[id] = struct{}{}
	return next
}
