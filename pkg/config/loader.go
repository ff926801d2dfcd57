package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/towerworks/foundation-core/pkg/models"
)

// LoadParameters loads and parses a parameter file
func LoadParameters(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file %s: %w", path, err)
	}
	params, err := ParseParametersYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse parameters file %s: %w", path, err)
	}
	return params, nil
}

// LoadSite loads and parses a site file
func LoadSite(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site file %s: %w", path, err)
	}
	site, err := ParseSiteYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse site file %s: %w", path, err)
	}
	return site, nil
}

// ValidationError reports one invalid parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnknownKindError indicates an unknown foundation kind
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return "unknown foundation kind: " + e.Kind
}

// ParseKind resolves a foundation kind name once, at configuration time.
func ParseKind(s string) (models.Kind, error) {
	k := models.Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", &UnknownKindError{Kind: s}
	}
	return k, nil
}

// validateParameters performs validation of the kind-independent parameters
func validateParameters(p *Parameters) error {
	validLogLevels := map[string]bool{
		"":      true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[p.LogLevel] {
		return invalid("log_level", "%s (must be debug, info, warn, or error)", p.LogLevel)
	}
	if p.MaxSolutions <= 0 {
		return invalid("max_solutions", "must be positive, got %d", p.MaxSolutions)
	}
	if p.Workers <= 0 {
		return invalid("workers", "must be positive, got %d", p.Workers)
	}
	if p.MaxCandidates <= 0 {
		return invalid("max_candidates", "must be positive, got %d", p.MaxCandidates)
	}
	if p.FillUnitWeightOverride != nil && *p.FillUnitWeightOverride <= 0 {
		return invalid("fill_unit_weight_override", "must be positive, got %g", *p.FillUnitWeightOverride)
	}

	if err := validateSafety(p.Safety); err != nil {
		return err
	}
	if err := validateRanking(p.Ranking); err != nil {
		return err
	}
	if err := validateCoverage(p.Coverage); err != nil {
		return err
	}

	for _, c := range []struct {
		name  string
		value float64
	}{
		{"costs.concrete_m3", p.Costs.Concrete},
		{"costs.excavation_m3", p.Costs.Excavation},
		{"costs.grout_m3", p.Costs.Grout},
		{"costs.drilling_m", p.Costs.Drilling},
	} {
		if c.value < 0 {
			return invalid(c.name, "cannot be negative, got %g", c.value)
		}
	}

	if p.Micropile != nil {
		if err := validateCatalog(p.Micropile.Catalog); err != nil {
			return err
		}
	}

	return nil
}

func validateSafety(s Safety) error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"safety.compression", s.Compression},
		{"safety.tension", s.Tension},
		{"safety.overturning", s.Overturning},
		{"safety.lateral", s.Lateral},
		{"safety.max_settlement_mm", s.MaxSettlement},
	} {
		if f.value <= 0 || math.IsNaN(f.value) {
			return invalid(f.name, "must be positive, got %g", f.value)
		}
	}
	return nil
}

func validateRanking(r Ranking) error {
	if r.CostTolerance < 0 {
		return invalid("ranking.cost_tolerance", "cannot be negative, got %g", r.CostTolerance)
	}
	switch r.Margin {
	case MarginMin, MarginWeightedMean:
	default:
		return invalid("ranking.margin", "%q (must be min or weighted_mean)", r.Margin)
	}
	for mode, w := range r.Weights {
		switch mode {
		case models.CheckCompression, models.CheckTension, models.CheckOverturning, models.CheckLateral:
		default:
			return invalid("ranking.weights", "unknown check mode %q", mode)
		}
		if w < 0 {
			return invalid("ranking.weights", "weight for %s cannot be negative", mode)
		}
	}
	return nil
}

func validateCoverage(c Coverage) error {
	if c.BaselineOverrunPct < 0 {
		return invalid("coverage.baseline_overrun_pct", "cannot be negative, got %g", c.BaselineOverrunPct)
	}
	prev := 0
	for i, tier := range c.Tiers {
		if tier.Below <= prev {
			return invalid("coverage.tiers", "tier %d: below must increase, got %d after %d", i, tier.Below, prev)
		}
		if tier.OverrunPct < 0 {
			return invalid("coverage.tiers", "tier %d: overrun_pct cannot be negative", i)
		}
		prev = tier.Below
	}
	return nil
}

func validateCatalog(catalog []models.MicropileSpec) error {
	seen := make(map[string]bool)
	for i, spec := range catalog {
		if spec.Type == "" || spec.Bar == "" || spec.InjectionProcess == "" {
			return invalid("micropile.catalog", "entry %d: type, injection_process and bar are required", i)
		}
		if spec.BarArea <= 0 || spec.YieldStrength <= 0 {
			return invalid("micropile.catalog", "entry %d: bar_area and yield_strength must be positive", i)
		}
		if spec.UnitCost < 0 {
			return invalid("micropile.catalog", "entry %d: unit_cost cannot be negative", i)
		}
		id := spec.ID()
		if seen[id] {
			return invalid("micropile.catalog", "duplicate descriptor %s", id)
		}
		seen[id] = true
	}
	return nil
}

// ValidateRange checks one search dimension. min > max is legal and
// yields an empty dimension.
func ValidateRange(field string, r Range) error {
	if r.Step <= 0 || math.IsNaN(r.Step) || math.IsInf(r.Step, 0) {
		return invalid(field, "step must be positive, got %g", r.Step)
	}
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return invalid(field, "bounds must be finite")
	}
	return nil
}

// RangeCount returns how many values r expands to, as a float so that
// absurd ranges can be compared against a limit without overflowing.
// r must already be valid.
func RangeCount(r Range) float64 {
	if r.Min > r.Max {
		return 0
	}
	return math.Floor((r.Max-r.Min)/r.Step+rangeEpsilon) + 1
}

// rangeEpsilon absorbs floating-point drift in (max-min)/step.
const rangeEpsilon = 1e-9

// ValidateFor checks that the search block for kind is present and
// well-formed, and that its product stays within the candidate limit.
// Missing blocks are errors, not defaults.
func (p *Parameters) ValidateFor(kind models.Kind) error {
	if err := p.validateSpace(kind); err != nil {
		return err
	}
	limit := p.CandidateLimit()
	if n := p.candidates(kind); n > float64(limit) {
		return invalid(string(kind), "search space has %.0f candidates, above max_candidates %d", n, limit)
	}
	return nil
}

// candidates is the unfiltered product size of kind's search space. An
// empty list dimension counts as its single fallback value.
func (p *Parameters) candidates(kind models.Kind) float64 {
	list := func(n int) float64 { return float64(max(n, 1)) }
	switch kind {
	case models.KindFooting:
		fs := p.Footing
		return RangeCount(fs.Width) * RangeCount(fs.Depth) * list(len(fs.PedestalHeights))
	case models.KindDrilledPier:
		ps := p.DrilledPier
		n := RangeCount(ps.Diameter) * RangeCount(ps.Length) * list(len(ps.PedestalHeights))
		if ps.BellDiameter != nil {
			n *= RangeCount(*ps.BellDiameter) * RangeCount(*ps.BellHeight)
		}
		return n
	case models.KindPile:
		ps := p.Pile
		return RangeCount(ps.Diameter) * RangeCount(ps.Length) * RangeCount(ps.StartDepth) * list(len(ps.PedestalHeights))
	case models.KindMicropile:
		ms := p.Micropile
		return float64(len(ms.Catalog)) * list(len(ms.Counts)) *
			RangeCount(ms.Diameter) * RangeCount(ms.Length) * RangeCount(ms.StartDepth)
	}
	return 0
}

func (p *Parameters) validateSpace(kind models.Kind) error {
	switch kind {
	case models.KindFooting:
		if p.Footing == nil {
			return invalid("footing", "search space is required")
		}
		if err := ValidateRange("footing.width", p.Footing.Width); err != nil {
			return err
		}
		if err := ValidateRange("footing.depth", p.Footing.Depth); err != nil {
			return err
		}
		if p.Footing.PedestalWidth <= 0 {
			return invalid("footing.pedestal_width", "must be positive")
		}
		return validateList("footing.pedestal_heights", p.Footing.PedestalHeights)
	case models.KindDrilledPier:
		if p.DrilledPier == nil {
			return invalid("drilled_pier", "search space is required")
		}
		if err := ValidateRange("drilled_pier.diameter", p.DrilledPier.Diameter); err != nil {
			return err
		}
		if err := ValidateRange("drilled_pier.length", p.DrilledPier.Length); err != nil {
			return err
		}
		if (p.DrilledPier.BellDiameter == nil) != (p.DrilledPier.BellHeight == nil) {
			return invalid("drilled_pier", "bell_diameter and bell_height must be given together")
		}
		if p.DrilledPier.BellDiameter != nil {
			if err := ValidateRange("drilled_pier.bell_diameter", *p.DrilledPier.BellDiameter); err != nil {
				return err
			}
			if err := ValidateRange("drilled_pier.bell_height", *p.DrilledPier.BellHeight); err != nil {
				return err
			}
		}
		return validateList("drilled_pier.pedestal_heights", p.DrilledPier.PedestalHeights)
	case models.KindPile:
		if p.Pile == nil {
			return invalid("pile", "search space is required")
		}
		if err := validateRanges(
			namedRange{"pile.diameter", p.Pile.Diameter},
			namedRange{"pile.length", p.Pile.Length},
			namedRange{"pile.start_depth", p.Pile.StartDepth},
		); err != nil {
			return err
		}
		return validateList("pile.pedestal_heights", p.Pile.PedestalHeights)
	case models.KindMicropile:
		if p.Micropile == nil {
			return invalid("micropile", "search space is required")
		}
		if err := validateRanges(
			namedRange{"micropile.diameter", p.Micropile.Diameter},
			namedRange{"micropile.length", p.Micropile.Length},
			namedRange{"micropile.start_depth", p.Micropile.StartDepth},
		); err != nil {
			return err
		}
		if len(p.Micropile.Catalog) == 0 {
			return invalid("micropile.catalog", "at least one descriptor is required")
		}
		for _, n := range p.Micropile.Counts {
			if n <= 0 {
				return invalid("micropile.counts", "counts must be positive, got %d", n)
			}
		}
		return validateCatalog(p.Micropile.Catalog)
	default:
		return &UnknownKindError{Kind: string(kind)}
	}
}

type namedRange struct {
	field string
	r     Range
}

func validateRanges(ranges ...namedRange) error {
	for _, nr := range ranges {
		if err := ValidateRange(nr.field, nr.r); err != nil {
			return err
		}
	}
	return nil
}

func validateList(field string, values []float64) error {
	for _, v := range values {
		if v < 0 || math.IsNaN(v) {
			return invalid(field, "values cannot be negative, got %g", v)
		}
	}
	return nil
}

// validateSite validates towers, soils and loads of a site file
func validateSite(s *Site) error {
	if len(s.Towers) == 0 {
		return fmt.Errorf("at least one tower must be defined")
	}
	names := make(map[string]bool)
	for _, t := range s.Towers {
		if t.Name == "" {
			return fmt.Errorf("tower name cannot be empty")
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate tower name: %s", t.Name)
		}
		names[t.Name] = true
		if t.FillUnitWeight < 0 {
			return fmt.Errorf("tower %s: fill_unit_weight cannot be negative", t.Name)
		}
		for _, k := range t.Recommendations {
			if !k.Valid() {
				return fmt.Errorf("tower %s: %w", t.Name, &UnknownKindError{Kind: string(k)})
			}
		}
	}

	for name, entry := range s.Soils {
		switch entry.Status {
		case "", SoilOK, SoilInvalid, SoilUnavailable:
		default:
			return fmt.Errorf("soil %s: invalid status %q (must be ok, invalid, or unavailable)", name, entry.Status)
		}
	}

	for name, l := range s.Loads {
		if l.Compression < 0 || l.Tension < 0 || l.Shear < 0 {
			return fmt.Errorf("loads %s: compression, tension and shear cannot be negative", name)
		}
	}

	return nil
}
