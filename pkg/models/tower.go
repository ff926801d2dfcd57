package models

import "slices"

// Kind identifies a foundation family. The set is closed; strategy
// selection (generator dimensions and evaluator formulas) switches on it.
type Kind string

const (
	KindMicropile   Kind = "micropile"
	KindPile        Kind = "pile"
	KindDrilledPier Kind = "drilled_pier"
	KindFooting     Kind = "footing"
)

// Kinds lists every supported foundation kind in a stable order.
var Kinds = []Kind{KindMicropile, KindPile, KindDrilledPier, KindFooting}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

func (k Kind) String() string {
	return string(k)
}

// Tower is a transmission-tower site to be founded.
type Tower struct {
	Name            string  `json:"name" yaml:"name"`
	Type            string  `json:"type" yaml:"type"`
	Recommendations []Kind  `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	FillUnitWeight  float64 `json:"fill_unit_weight" yaml:"fill_unit_weight"` // kN/m3
	LoadsRef        string  `json:"loads_ref,omitempty" yaml:"loads_ref,omitempty"`
}

// Recommends reports whether kind k is applicable to the tower.
// A tower without explicit recommendations accepts every kind.
func (t Tower) Recommends(k Kind) bool {
	if len(t.Recommendations) == 0 {
		return true
	}
	return slices.Contains(t.Recommendations, k)
}

// WithFillUnitWeight returns a copy of t with the fill unit weight replaced.
func (t Tower) WithFillUnitWeight(w float64) Tower {
	out := t
	out.Recommendations = slices.Clone(t.Recommendations)
	out.FillUnitWeight = w
	return out
}

// LoadsKey returns the key used to look up the tower's structural loads.
func (t Tower) LoadsKey() string {
	if t.LoadsRef != "" {
		return t.LoadsRef
	}
	return t.Name
}

// Loads are the design actions on one tower leg.
type Loads struct {
	Compression float64 `json:"compression" yaml:"compression"` // kN
	Tension     float64 `json:"tension" yaml:"tension"`         // kN
	Shear       float64 `json:"shear" yaml:"shear"`             // kN, horizontal
	Moment      float64 `json:"moment,omitempty" yaml:"moment,omitempty"`
}
