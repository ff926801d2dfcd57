package geotech

import (
	"math"

	"github.com/towerworks/foundation-core/pkg/models"
	"github.com/towerworks/foundation-core/pkg/utils"
)

const (
	concreteUnitWeight = 24.0    // kN/m3
	concreteModulus    = 25e6    // kPa
	steelModulus       = 200e6   // kPa
	groutModulus       = 20e6    // kPa
	maxEndBearing      = 10000.0 // kPa
)

// bearingFactors returns Nc, Nq and Ngamma for friction angle phi (deg).
func bearingFactors(phi float64) (nc, nq, ng float64) {
	rad := utils.Radians(phi)
	nq = math.Exp(math.Pi*math.Tan(rad)) * math.Pow(math.Tan(math.Pi/4+rad/2), 2)
	if phi == 0 {
		nc = 5.14
	} else {
		nc = (nq - 1) / math.Tan(rad)
	}
	ng = 2 * (nq + 1) * math.Tan(rad)
	return nc, nq, ng
}

// passiveCoefficient returns the Rankine passive earth pressure coefficient.
func passiveCoefficient(phi float64) float64 {
	rad := utils.Radians(phi)
	return math.Pow(math.Tan(math.Pi/4+rad/2), 2)
}

// shaftFriction integrates unit side resistance alpha*c + K*sigma_v*tan(delta)
// over [from, to] for a shaft of perimeter per, K = kFactor*(1-sin phi)
// and delta = deltaRatio*phi.
func shaftFriction(soil models.SoilProfile, per, from, to, alpha, kFactor, deltaRatio float64) float64 {
	var q float64
	for _, seg := range soil.Between(from, to) {
		rad := utils.Radians(seg.FrictionAngle)
		k := kFactor * (1 - math.Sin(rad))
		fs := alpha*seg.Cohesion + k*soil.VerticalStress(seg.Mid())*math.Tan(deltaRatio*rad)
		q += fs * per * seg.Length()
	}
	return q
}

// endBearing returns the unit tip resistance at depth z.
func endBearing(soil models.SoilProfile, z float64) float64 {
	st, ok := soil.At(z)
	if !ok {
		return 0
	}
	_, nq, _ := bearingFactors(st.FrictionAngle)
	return math.Min(9*st.Cohesion+soil.VerticalStress(z)*nq, maxEndBearing)
}

// averaged returns thickness-weighted strength parameters over [from, to].
func averaged(soil models.SoilProfile, from, to float64) (gamma, c, phi, nu, e float64) {
	segs := soil.Between(from, to)
	var total float64
	for _, seg := range segs {
		l := seg.Length()
		gamma += seg.UnitWeight * l
		c += seg.Cohesion * l
		phi += seg.FrictionAngle * l
		nu += seg.Poisson * l
		e += seg.Modulus * l
		total += l
	}
	if total == 0 {
		return 0, 0, 0, 0, 0
	}
	return gamma / total, c / total, phi / total, nu / total, e / total
}

func circleArea(d float64) float64 {
	return math.Pi * d * d / 4
}
