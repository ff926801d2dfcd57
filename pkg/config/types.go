package config

import "github.com/towerworks/foundation-core/pkg/models"

// Parameters is the validated engineering parameter set of one run.
// Defaults (see DefaultParameters) are applied at load time only; the
// geometry search blocks have no defaults and must be supplied for every
// kind that is optimized.
type Parameters struct {
	LogLevel     string `yaml:"log_level,omitempty"`
	MaxSolutions int    `yaml:"max_solutions"`
	Workers      int    `yaml:"workers"`
	// MaxCandidates caps the unfiltered size of a kind's search space.
	MaxCandidates int `yaml:"max_candidates"`

	// FillUnitWeightOverride replaces every tower's fill unit weight
	// before optimization starts.
	FillUnitWeightOverride *float64 `yaml:"fill_unit_weight_override,omitempty"`
	// ExtendToRock extends the last soil layer down to the recorded rock
	// depth on a per-tower copy of the profile.
	ExtendToRock bool `yaml:"extend_to_rock"`

	Safety   Safety   `yaml:"safety"`
	Ranking  Ranking  `yaml:"ranking"`
	Costs    Costs    `yaml:"costs"`
	Coverage Coverage `yaml:"coverage"`

	Footing     *FootingSpace   `yaml:"footing,omitempty"`
	DrilledPier *PierSpace      `yaml:"drilled_pier,omitempty"`
	Pile        *PileSpace      `yaml:"pile,omitempty"`
	Micropile   *MicropileSpace `yaml:"micropile,omitempty"`
}

// Safety holds the required factors of safety and the settlement limit.
type Safety struct {
	Compression   float64 `yaml:"compression"`
	Tension       float64 `yaml:"tension"`
	Overturning   float64 `yaml:"overturning"`
	Lateral       float64 `yaml:"lateral"`
	MaxSettlement float64 `yaml:"max_settlement_mm"`
}

// Required returns the minimum factor of safety for mode.
func (s Safety) Required(mode models.CheckMode) float64 {
	switch mode {
	case models.CheckCompression:
		return s.Compression
	case models.CheckTension:
		return s.Tension
	case models.CheckOverturning:
		return s.Overturning
	case models.CheckLateral:
		return s.Lateral
	default:
		return 0
	}
}

// MarginRule selects how per-mode safety ratios collapse into one margin.
type MarginRule string

const (
	// MarginMin takes the smallest FoS/required ratio.
	MarginMin MarginRule = "min"
	// MarginWeightedMean takes the weighted mean of FoS/required ratios.
	MarginWeightedMean MarginRule = "weighted_mean"
)

// Ranking configures the tie-break between equal-cost solutions.
type Ranking struct {
	// CostTolerance is the absolute cost difference under which two
	// solutions are considered equal in cost.
	CostTolerance float64                      `yaml:"cost_tolerance"`
	Margin        MarginRule                   `yaml:"margin"`
	Weights       map[models.CheckMode]float64 `yaml:"weights,omitempty"`
}

// Costs are unit prices used by the reference evaluators.
type Costs struct {
	Concrete   float64 `yaml:"concrete_m3"`
	Excavation float64 `yaml:"excavation_m3"`
	Grout      float64 `yaml:"grout_m3"`
	Drilling   float64 `yaml:"drilling_m"`
}

// Coverage configures the overrun threshold schedule of group selection.
type Coverage struct {
	BaselineOverrunPct float64        `yaml:"baseline_overrun_pct"`
	Tiers              []CoverageTier `yaml:"tiers"`
}

// CoverageTier applies OverrunPct to the next query when the group just
// picked covered fewer than Below towers.
type CoverageTier struct {
	Below      int     `yaml:"below"`
	OverrunPct float64 `yaml:"overrun_pct"`
}

// Range is an inclusive (min, max, step) numeric search dimension.
type Range struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// FootingSpace is the search space of pad-and-pedestal footings.
type FootingSpace struct {
	Width           Range     `yaml:"width"`
	Depth           Range     `yaml:"depth"`
	PedestalHeights []float64 `yaml:"pedestal_heights"`
	PedestalWidth   float64   `yaml:"pedestal_width"`
}

// PierSpace is the search space of drilled piers, optionally belled.
// A zero BellDiameter range disables the bell dimensions.
type PierSpace struct {
	Diameter        Range     `yaml:"diameter"`
	Length          Range     `yaml:"length"`
	BellDiameter    *Range    `yaml:"bell_diameter,omitempty"`
	BellHeight      *Range    `yaml:"bell_height,omitempty"`
	PedestalHeights []float64 `yaml:"pedestal_heights"`
}

// PileSpace is the search space of straight bored piles.
type PileSpace struct {
	Diameter        Range     `yaml:"diameter"`
	Length          Range     `yaml:"length"`
	StartDepth      Range     `yaml:"start_depth"`
	PedestalHeights []float64 `yaml:"pedestal_heights"`
}

// MicropileSpace is the search space of micropile legs.
type MicropileSpace struct {
	Diameter   Range                  `yaml:"diameter"`
	Length     Range                  `yaml:"length"`
	StartDepth Range                  `yaml:"start_depth"`
	Counts     []int                  `yaml:"counts"`
	Catalog    []models.MicropileSpec `yaml:"catalog"`
}

// DefaultMaxCandidates is the max_candidates default and the limit used
// when a parameter set leaves it unset.
const DefaultMaxCandidates = 1_000_000

// CandidateLimit returns MaxCandidates, or DefaultMaxCandidates when it
// is not positive.
func (p *Parameters) CandidateLimit() int {
	if p.MaxCandidates > 0 {
		return p.MaxCandidates
	}
	return DefaultMaxCandidates
}

// DefaultParameters returns the documented defaults:
// max_solutions 5, workers 1, max_candidates 1,000,000, FoS compression
// 2.5 / tension 2.0 / overturning 1.5 / lateral 1.5, settlement 25 mm,
// min-ratio margin with 0.01 cost tolerance, baseline overrun 15% with
// tiers <2 -> 100% and <5 -> 60%.
func DefaultParameters() *Parameters {
	return &Parameters{
		LogLevel:      "info",
		MaxSolutions:  5,
		Workers:       1,
		MaxCandidates: DefaultMaxCandidates,
		Safety: Safety{
			Compression:   2.5,
			Tension:       2.0,
			Overturning:   1.5,
			Lateral:       1.5,
			MaxSettlement: 25,
		},
		Ranking: Ranking{
			CostTolerance: 0.01,
			Margin:        MarginMin,
		},
		Costs: Costs{
			Concrete:   180,
			Excavation: 25,
			Grout:      320,
			Drilling:   95,
		},
		Coverage: Coverage{
			BaselineOverrunPct: 15,
			Tiers: []CoverageTier{
				{Below: 2, OverrunPct: 100},
				{Below: 5, OverrunPct: 60},
			},
		},
	}
}
