package geotech

import (
	"math"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

// upliftSpread is the half-angle of the soil frustum mobilised in uplift.
const upliftSpread = 20.0 // degrees

// padThickness is the slab thickness used for a pad of width b.
func padThickness(b float64) float64 {
	return math.Max(0.3, b/5)
}

// evaluateFooting checks a square pad of width Width founded at Depth with a
// square pedestal of width Diameter rising PedestalHeight above grade.
func evaluateFooting(g models.Geometry, soil models.SoilProfile, loads models.Loads, params *config.Parameters) models.FeasibilityResult {
	b, d, bp, hp := g.Width, g.Depth, g.Diameter, g.PedestalHeight
	t := padThickness(b)
	if d <= t {
		return models.Infeasible("pad thicker than founding depth")
	}
	base, ok := soil.At(d)
	if !ok {
		return models.Infeasible("founding depth below soil profile")
	}

	area := b * b
	cover := d - t
	concrete := area*t + bp*bp*(cover+hp)
	excavation := area * d
	wc := concrete * concreteUnitWeight
	wf := soil.FillUnitWeight() * (area - bp*bp) * cover

	v := newVerdict(params)

	// Terzaghi bearing capacity, square shape factors.
	nc, nq, ng := bearingFactors(base.FrictionAngle)
	qult := 1.3*base.Cohesion*nc + soil.VerticalStress(d)*nq + 0.4*base.UnitWeight*b*ng
	v.check(models.CheckCompression, qult*area, loads.Compression+wc+wf)

	// Uplift: own weight plus the backfill frustum above the pad.
	spread := b + 2*cover*math.Tan(utils.Radians(upliftSpread))
	frustum := cover * (area + b*spread + spread*spread) / 3
	v.check(models.CheckTension, wc+soil.FillUnitWeight()*(frustum-bp*bp*cover), loads.Tension)

	// Overturning about the pad edge; only dead weight resists.
	arm := d + hp
	v.check(models.CheckOverturning, (wc+wf)*b/2, loads.Shear*arm+loads.Moment)

	// Sliding: base friction and adhesion plus passive resistance on the pad face.
	gamma, avgC, avgPhi, _, _ := averaged(soil, 0, d)
	delta := utils.Radians(2 * base.FrictionAngle / 3)
	passive := 0.5*passiveCoefficient(avgPhi)*gamma*d*d*b + 2*avgC*math.Sqrt(passiveCoefficient(avgPhi))*d*b
	v.check(models.CheckLateral, (wc+wf)*math.Tan(delta)+base.Cohesion*area+passive, loads.Shear)

	// Elastic settlement of a rigid square footing; kPa*m/MPa gives mm.
	q := loads.Compression / area
	settlement := q * b * (1 - base.Poisson*base.Poisson) * 0.88 / base.Modulus

	p := params.Costs
	return v.result(settlement, concrete*p.Concrete+excavation*p.Excavation, concrete)
}
