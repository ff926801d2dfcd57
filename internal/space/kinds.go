package space

import (
	"fmt"
	"slices"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
)

// ForKind builds the search space of kind from the parameter set.
// Dimension order per kind:
//
//	footing:      width, depth, pedestal_height
//	drilled_pier: diameter, length, [bell_diameter, bell_height], pedestal_height
//	pile:         diameter, length, start_depth, pedestal_height
//	micropile:    descriptor, count, diameter, length, start_depth
//
// The unfiltered product, and so every single dimension, is bounded by
// params.CandidateLimit; larger spaces fail with a config.ValidationError.
func ForKind(kind models.Kind, params *config.Parameters) (*Space, error) {
	if err := params.ValidateFor(kind); err != nil {
		return nil, err
	}

	limit := params.CandidateLimit()
	var (
		s   *Space
		err error
	)
	switch kind {
	case models.KindFooting:
		s, err = footingSpace(params.Footing, limit)
	case models.KindDrilledPier:
		s, err = pierSpace(params.DrilledPier, limit)
	case models.KindPile:
		s, err = pileSpace(params.Pile, limit)
	default:
		s, err = micropileSpace(params.Micropile, limit)
	}
	if err != nil {
		return nil, err
	}
	if n := s.Count(); n > limit {
		return nil, &config.ValidationError{
			Field:  string(kind),
			Reason: fmt.Sprintf("search space has %d candidates, above max_candidates %d", n, limit),
		}
	}
	return s, nil
}

func footingSpace(fs *config.FootingSpace, limit int) (*Space, error) {
	dims, err := rangeDims(limit,
		rangeSpec{"width", fs.Width, func(g *models.Geometry, v float64) { g.Width = v }},
		rangeSpec{"depth", fs.Depth, func(g *models.Geometry, v float64) { g.Depth = v }},
	)
	if err != nil {
		return nil, err
	}
	pedestalWidth := fs.PedestalWidth
	dims = append(dims, ListDimension("pedestal_height", fs.PedestalHeights, 0, func(g *models.Geometry, v float64) {
		g.PedestalHeight = v
		g.Diameter = pedestalWidth
	}))
	return New(models.KindFooting, dims...).
		WithFilter(PedestalNarrowerThanPad), nil
}

func pierSpace(ps *config.PierSpace, limit int) (*Space, error) {
	specs := []rangeSpec{
		{"diameter", ps.Diameter, func(g *models.Geometry, v float64) { g.Diameter = v }},
		{"length", ps.Length, func(g *models.Geometry, v float64) { g.Length = v }},
	}
	if ps.BellDiameter != nil {
		specs = append(specs,
			rangeSpec{"bell_diameter", *ps.BellDiameter, func(g *models.Geometry, v float64) { g.BellDiameter = v }},
			rangeSpec{"bell_height", *ps.BellHeight, func(g *models.Geometry, v float64) { g.BellHeight = v }},
		)
	}
	dims, err := rangeDims(limit, specs...)
	if err != nil {
		return nil, err
	}
	dims = append(dims, ListDimension("pedestal_height", ps.PedestalHeights, 0, func(g *models.Geometry, v float64) { g.PedestalHeight = v }))
	return New(models.KindDrilledPier, dims...).
		WithFilter(BellFitsShaft), nil
}

func pileSpace(ps *config.PileSpace, limit int) (*Space, error) {
	dims, err := rangeDims(limit,
		rangeSpec{"diameter", ps.Diameter, func(g *models.Geometry, v float64) { g.Diameter = v }},
		rangeSpec{"length", ps.Length, func(g *models.Geometry, v float64) { g.Length = v }},
		rangeSpec{"start_depth", ps.StartDepth, func(g *models.Geometry, v float64) { g.StartDepth = v }},
	)
	if err != nil {
		return nil, err
	}
	dims = append(dims, ListDimension("pedestal_height", ps.PedestalHeights, 0, func(g *models.Geometry, v float64) { g.PedestalHeight = v }))
	return New(models.KindPile, dims...).
		WithFilter(StartAboveToe), nil
}

func micropileSpace(ms *config.MicropileSpace, limit int) (*Space, error) {
	catalog := slices.Clone(ms.Catalog)
	indices := make([]float64, len(catalog))
	for i := range indices {
		indices[i] = float64(i)
	}
	counts := make([]float64, len(ms.Counts))
	for i, n := range ms.Counts {
		counts[i] = float64(n)
	}

	dims := []Dimension{
		{Name: "descriptor", Values: indices, Apply: func(g *models.Geometry, v float64) { g.Micropile = catalog[int(v)] }},
		ListDimension("count", counts, 1, func(g *models.Geometry, v float64) { g.Count = int(v) }),
	}
	rest, err := rangeDims(limit,
		rangeSpec{"diameter", ms.Diameter, func(g *models.Geometry, v float64) { g.Diameter = v }},
		rangeSpec{"length", ms.Length, func(g *models.Geometry, v float64) { g.Length = v }},
		rangeSpec{"start_depth", ms.StartDepth, func(g *models.Geometry, v float64) { g.StartDepth = v }},
	)
	if err != nil {
		return nil, err
	}
	dims = append(dims, rest...)
	return New(models.KindMicropile, dims...).
		WithFilter(StartAboveToe), nil
}

// BellFitsShaft admits straight shafts, and bells that are wider than the
// shaft and shorter than the pier.
func BellFitsShaft(g models.Geometry) bool {
	if g.BellDiameter == 0 && g.BellHeight == 0 {
		return true
	}
	return g.Length > g.BellHeight && g.BellDiameter > g.Diameter
}

// StartAboveToe admits geometries whose working zone starts above the toe.
func StartAboveToe(g models.Geometry) bool {
	return g.StartDepth < g.Length
}

// PedestalNarrowerThanPad admits footings whose pedestal fits on the pad.
func PedestalNarrowerThanPad(g models.Geometry) bool {
	return g.Diameter < g.Width
}
