package geotech

import (
	"math"
	"strings"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

// injectionFactor scales grout-ground bond by injection process:
// IGU is a single global injection, IRS repeated selective injection.
func injectionFactor(process string) float64 {
	switch strings.ToUpper(process) {
	case "IRS":
		return 1.25
	default:
		return 1.0
	}
}

// bondCapacity integrates grout-ground bond over the bonded zone of one
// micropile. Strata without a measured bond strength fall back to a
// frictional estimate.
func bondCapacity(soil models.SoilProfile, d, from, to float64, process string) float64 {
	var q float64
	for _, seg := range soil.Between(from, to) {
		tau := seg.BondStrength
		if tau <= 0 {
			tau = seg.Cohesion + soil.VerticalStress(seg.Mid())*math.Tan(utils.Radians(seg.FrictionAngle))
		}
		q += tau * math.Pi * d * seg.Length()
	}
	return q * injectionFactor(process)
}

// evaluateMicropile checks a group of Count identical micropiles bonded from
// StartDepth down to Length. Lateral actions go to the cap, not the piles.
func evaluateMicropile(g models.Geometry, soil models.SoilProfile, loads models.Loads, params *config.Parameters) models.FeasibilityResult {
	spec := g.Micropile
	if spec.IsZero() || g.Count <= 0 {
		return models.Infeasible("micropile descriptor or count missing")
	}
	if g.Length > soil.Depth() {
		return models.Infeasible("micropile toe below soil profile")
	}

	n := float64(g.Count)
	structural := spec.BarArea * spec.YieldStrength / 1000 // mm2*MPa -> kN
	if spec.Resistance > 0 {
		structural = math.Min(structural, spec.Resistance)
	}
	bond := bondCapacity(soil, g.Diameter, g.StartDepth, g.Length, spec.InjectionProcess)
	perPile := math.Min(bond, structural)

	v := newVerdict(params)
	v.check(models.CheckCompression, n*perPile, loads.Compression)
	v.check(models.CheckTension, n*perPile, loads.Tension)

	// Composite steel and grout shortening over the free length plus half
	// the bonded length.
	bar := spec.BarArea * 1e-6
	grout := circleArea(g.Diameter) - bar
	stiffness := steelModulus*bar + groutModulus*grout
	effective := g.StartDepth + (g.Length-g.StartDepth)/2
	settlement := loads.Compression / n * effective / stiffness * 1000

	groutVolume := n * circleArea(g.Diameter) * g.Length
	p := params.Costs
	cost := n*g.Length*(spec.UnitCost+p.Drilling) + groutVolume*p.Grout
	return v.result(settlement, cost, groutVolume)
}
