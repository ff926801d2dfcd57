package geotech

import (
	"math"

	"github.com/towerworks/foundation-core/pkg/config"
	"github.com/towerworks/foundation-core/pkg/models"
)

// shaft describes a cylindrical deep foundation for the shared checks.
type shaft struct {
	diameter   float64
	length     float64
	frictionAt float64 // depth at which side resistance starts
	bellDia    float64
	bellHeight float64
	pedestal   float64

	alpha, kFactor, deltaRatio float64
	upliftFactor               float64
}

// Drilled piers mobilise less side friction than driven piles and lose a
// further share of it in uplift.
func evaluatePier(g models.Geometry, soil models.SoilProfile, loads models.Loads, params *config.Parameters) models.FeasibilityResult {
	return shaft{
		diameter:     g.Diameter,
		length:       g.Length,
		bellDia:      g.BellDiameter,
		bellHeight:   g.BellHeight,
		pedestal:     g.PedestalHeight,
		alpha:        0.55,
		kFactor:      1.0,
		deltaRatio:   1.0,
		upliftFactor: 0.75,
	}.evaluate(soil, loads, params)
}

func evaluatePile(g models.Geometry, soil models.SoilProfile, loads models.Loads, params *config.Parameters) models.FeasibilityResult {
	return shaft{
		diameter:     g.Diameter,
		length:       g.Length,
		frictionAt:   g.StartDepth,
		pedestal:     g.PedestalHeight,
		alpha:        0.5,
		kFactor:      1.5,
		deltaRatio:   0.75,
		upliftFactor: 0.7,
	}.evaluate(soil, loads, params)
}

func (s shaft) belled() bool {
	return s.bellDia > 0 && s.bellHeight > 0
}

func (s shaft) evaluate(soil models.SoilProfile, loads models.Loads, params *config.Parameters) models.FeasibilityResult {
	if s.length > soil.Depth() {
		return models.Infeasible("shaft toe below soil profile")
	}
	tip, _ := soil.At(s.length)

	per := math.Pi * s.diameter
	sideTo := s.length
	tipDia := s.diameter
	if s.belled() {
		sideTo = s.length - s.bellHeight
		tipDia = s.bellDia
	}
	side := shaftFriction(soil, per, s.frictionAt, sideTo, s.alpha, s.kFactor, s.deltaRatio)

	area := circleArea(s.diameter)
	concrete := area * (s.length + s.pedestal)
	excavation := area * s.length
	if s.belled() {
		// Under-ream as a cone frustum replacing the straight shaft.
		frustum := math.Pi * s.bellHeight * (s.bellDia*s.bellDia + s.bellDia*s.diameter + s.diameter*s.diameter) / 12
		extra := frustum - area*s.bellHeight
		concrete += extra
		excavation += extra
	}
	weight := concrete * concreteUnitWeight

	v := newVerdict(params)
	v.check(models.CheckCompression, side+endBearing(soil, s.length)*circleArea(tipDia), loads.Compression+weight)

	uplift := s.upliftFactor*side + weight
	if s.belled() {
		ring := circleArea(s.bellDia) - area
		uplift += ring * (9*tip.Cohesion + soil.VerticalStress(s.length-s.bellHeight))
	}
	v.check(models.CheckTension, uplift, loads.Tension)

	v.check(models.CheckLateral, s.lateralCapacity(soil, loads), loads.Shear)

	// Elastic shortening plus tip settlement; metres converted to mm.
	es := tip.Modulus * 1000
	settlement := (loads.Compression*s.length/(area*concreteModulus) +
		loads.Compression*(1-tip.Poisson*tip.Poisson)/(tipDia*es)) * 1000

	p := params.Costs
	return v.result(settlement, concrete*p.Concrete+excavation*p.Excavation, concrete)
}

// lateralCapacity is a Broms short free-head estimate with soil
// parameters averaged over the embedded length.
func (s shaft) lateralCapacity(soil models.SoilProfile, loads models.Loads) float64 {
	gamma, c, phi, _, _ := averaged(soil, 0, s.length)
	e := s.pedestal
	if loads.Shear > 0 {
		e += loads.Moment / loads.Shear
	}
	l := s.length
	frictional := 0.5 * gamma * s.diameter * l * l * l * passiveCoefficient(phi) / (e + l)
	cohesive := 4.5 * c * s.diameter * math.Max(l-1.5*s.diameter, 0)
	return frictional + cohesive
}
