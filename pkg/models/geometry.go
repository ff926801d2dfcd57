package models

import (
	"fmt"
	"strconv"
)

// MicropileSpec describes a standardized micropile: its type class, the
// nominal resistance, the grout injection process and the steel bar.
type MicropileSpec struct {
	Type             string  `json:"type" yaml:"type"`
	Resistance       float64 `json:"resistance" yaml:"resistance"` // kN, nominal
	InjectionProcess string  `json:"injection_process" yaml:"injection_process"`
	Bar              string  `json:"bar" yaml:"bar"`
	BarArea          float64 `json:"bar_area" yaml:"bar_area"`             // mm2
	YieldStrength    float64 `json:"yield_strength" yaml:"yield_strength"` // MPa
	UnitCost         float64 `json:"unit_cost" yaml:"unit_cost"`           // per metre drilled
}

// ID returns the installation identifier used to name a micropile group.
func (m MicropileSpec) ID() string {
	return fmt.Sprintf("MP-%s-%s-%s-%s", m.Type, strconv.FormatFloat(m.Resistance, 'f', -1, 64), m.InjectionProcess, m.Bar)
}

// IsZero reports whether no micropile descriptor is set.
func (m MicropileSpec) IsZero() bool {
	return m == MicropileSpec{}
}

// Geometry is one concrete point in the design space. Fields that do not
// apply to the geometry's Kind are zero. Values are metres unless noted.
// For footings Diameter carries the pedestal width and Depth the base depth.
type Geometry struct {
	Kind           Kind          `json:"kind"`
	Diameter       float64       `json:"diameter,omitempty"`
	Length         float64       `json:"length,omitempty"`
	StartDepth     float64       `json:"start_depth,omitempty"`
	PedestalHeight float64       `json:"pedestal_height,omitempty"`
	BellDiameter   float64       `json:"bell_diameter,omitempty"`
	BellHeight     float64       `json:"bell_height,omitempty"`
	Width          float64       `json:"width,omitempty"`
	Depth          float64       `json:"depth,omitempty"`
	Count          int           `json:"count,omitempty"`
	Micropile      MicropileSpec `json:"micropile,omitzero"`
}

// HasBell reports whether the pier carries an under-ream.
func (g Geometry) HasBell() bool {
	return g.BellDiameter > 0 && g.BellHeight > 0
}

func (g Geometry) String() string {
	switch g.Kind {
	case KindFooting:
		return fmt.Sprintf("footing B=%.2f D=%.2f ped=%.2f", g.Width, g.Depth, g.PedestalHeight)
	case KindDrilledPier:
		if g.HasBell() {
			return fmt.Sprintf("pier d=%.2f L=%.2f bell=%.2fx%.2f ped=%.2f", g.Diameter, g.Length, g.BellDiameter, g.BellHeight, g.PedestalHeight)
		}
		return fmt.Sprintf("pier d=%.2f L=%.2f ped=%.2f", g.Diameter, g.Length, g.PedestalHeight)
	case KindPile:
		return fmt.Sprintf("pile d=%.2f L=%.2f z0=%.2f ped=%.2f", g.Diameter, g.Length, g.StartDepth, g.PedestalHeight)
	case KindMicropile:
		return fmt.Sprintf("%s n=%d d=%.3f L=%.2f z0=%.2f", g.Micropile.ID(), g.Count, g.Diameter, g.Length, g.StartDepth)
	default:
		return fmt.Sprintf("%s geometry", g.Kind)
	}
}
