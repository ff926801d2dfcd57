package models

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Stratum is a horizontal soil layer with uniform properties.
// Depths are measured in metres below finished grade.
type Stratum struct {
	Top           float64 `json:"top" yaml:"top"`
	Bottom        float64 `json:"bottom" yaml:"bottom"`
	UnitWeight    float64 `json:"unit_weight" yaml:"unit_weight"`       // kN/m3
	Cohesion      float64 `json:"cohesion" yaml:"cohesion"`             // kPa
	FrictionAngle float64 `json:"friction_angle" yaml:"friction_angle"` // degrees
	Poisson       float64 `json:"poisson" yaml:"poisson"`
	Modulus       float64 `json:"modulus" yaml:"modulus"`                                 // MPa
	BondStrength  float64 `json:"bond_strength,omitempty" yaml:"bond_strength,omitempty"` // kPa, grout-ground
}

// Thickness returns the layer thickness.
func (s Stratum) Thickness() float64 {
	return s.Bottom - s.Top
}

// SoilProfile is an ordered sequence of strata from grade downwards.
type SoilProfile struct {
	Strata    []Stratum `json:"strata" yaml:"strata"`
	RockDepth float64   `json:"rock_depth,omitempty" yaml:"rock_depth,omitempty"`
	// Fill is the unit weight (kN/m3) of backfill placed over the
	// foundation. It comes from the tower, not from the borehole log.
	Fill float64 `json:"fill,omitempty" yaml:"-"`
}

var ErrEmptyProfile = errors.New("soil profile has no strata")

// Validate checks that strata are contiguous, ordered and physically sane.
func (p SoilProfile) Validate() error {
	if len(p.Strata) == 0 {
		return ErrEmptyProfile
	}
	for i, s := range p.Strata {
		if s.Bottom <= s.Top {
			return fmt.Errorf("stratum %d: bottom %.2f must be below top %.2f", i, s.Bottom, s.Top)
		}
		if i == 0 && s.Top != 0 {
			return fmt.Errorf("stratum 0: must start at grade, got top %.2f", s.Top)
		}
		if i > 0 && math.Abs(s.Top-p.Strata[i-1].Bottom) > 1e-6 {
			return fmt.Errorf("stratum %d: top %.2f does not meet previous bottom %.2f", i, s.Top, p.Strata[i-1].Bottom)
		}
		if s.UnitWeight <= 0 {
			return fmt.Errorf("stratum %d: unit_weight must be positive", i)
		}
		if s.Poisson < 0 || s.Poisson >= 0.5 {
			return fmt.Errorf("stratum %d: poisson must be in [0, 0.5), got %.3f", i, s.Poisson)
		}
		if s.Modulus <= 0 {
			return fmt.Errorf("stratum %d: modulus must be positive", i)
		}
	}
	return nil
}

// Clone returns a deep copy of the profile.
func (p SoilProfile) Clone() SoilProfile {
	return SoilProfile{Strata: slices.Clone(p.Strata), RockDepth: p.RockDepth, Fill: p.Fill}
}

// WithFill returns a copy of the profile carrying backfill unit weight w.
func (p SoilProfile) WithFill(w float64) SoilProfile {
	out := p.Clone()
	out.Fill = w
	return out
}

// FillUnitWeight returns the backfill unit weight, falling back to the
// top stratum when no fill was set.
func (p SoilProfile) FillUnitWeight() float64 {
	if p.Fill > 0 {
		return p.Fill
	}
	if len(p.Strata) > 0 {
		return p.Strata[0].UnitWeight
	}
	return 0
}

// Depth returns the bottom of the deepest stratum.
func (p SoilProfile) Depth() float64 {
	if len(p.Strata) == 0 {
		return 0
	}
	return p.Strata[len(p.Strata)-1].Bottom
}

// ExtendTo returns a copy whose last stratum reaches at least depth.
// The receiver is never modified.
func (p SoilProfile) ExtendTo(depth float64) SoilProfile {
	out := p.Clone()
	if n := len(out.Strata); n > 0 && out.Strata[n-1].Bottom < depth {
		out.Strata[n-1].Bottom = depth
	}
	return out
}

// ExtendToRock extends the last stratum down to the recorded rock depth.
func (p SoilProfile) ExtendToRock() SoilProfile {
	if p.RockDepth <= 0 {
		return p.Clone()
	}
	return p.ExtendTo(p.RockDepth)
}

// At returns the stratum containing depth z.
func (p SoilProfile) At(z float64) (Stratum, bool) {
	for _, s := range p.Strata {
		if z >= s.Top && z < s.Bottom {
			return s, true
		}
	}
	if n := len(p.Strata); n > 0 && z == p.Strata[n-1].Bottom {
		return p.Strata[n-1], true
	}
	return Stratum{}, false
}

// VerticalStress returns the total overburden stress (kPa) at depth z.
func (p SoilProfile) VerticalStress(z float64) float64 {
	var sigma float64
	for _, s := range p.Strata {
		if z <= s.Top {
			break
		}
		sigma += s.UnitWeight * (math.Min(z, s.Bottom) - s.Top)
	}
	return sigma
}

// Segment is the part of a stratum lying between two depths.
type Segment struct {
	Stratum
	From, To float64
}

// Length returns the segment length.
func (s Segment) Length() float64 {
	return s.To - s.From
}

// Mid returns the segment mid-depth.
func (s Segment) Mid() float64 {
	return (s.From + s.To) / 2
}

// Between splits the depth interval [from, to] along strata boundaries.
func (p SoilProfile) Between(from, to float64) []Segment {
	var out []Segment
	for _, s := range p.Strata {
		lo := math.Max(from, s.Top)
		hi := math.Min(to, s.Bottom)
		if hi > lo {
			out = append(out, Segment{Stratum: s, From: lo, To: hi})
		}
	}
	return out
}
