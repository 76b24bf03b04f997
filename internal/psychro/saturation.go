// Package psychro derives the psychrometric state of moist air from a
// dry-bulb/wet-bulb temperature pair at standard sea-level pressure.
//
// Every function is pure: no package state, no I/O, safe for concurrent use.
// Relative humidity is a 0..1 fraction inside the package; State reports it in
// percent, converted exactly once by FractionToPercent.
package psychro

import "math"

const (
	// AtmosphericPressure is the fixed total pressure used by all formulas, Pa.
	AtmosphericPressure = 101325.0
	// DryAirGasConstant is the specific gas constant of dry air, J/(kg·K).
	DryAirGasConstant = 287.055

	// MinSaturationTemp and MaxSaturationTemp bound the correlation over liquid water, °C.
	MinSaturationTemp = 0.0
	MaxSaturationTemp = 200.0

	kelvinOffset = 273.15
	// molar mass ratio of water vapour to dry air
	epsilon = 0.622
	// psychrometer coefficient for a ventilated wet bulb, 1/K
	psychrometerCoefficient = 0.000662
)

// Hyland-Wexler coefficients over liquid water (C6 is zero above freezing).
const (
	c1 = -5800.2206
	c2 = 1.3914993
	c3 = -0.048640239
	c4 = 4.1764768e-5
	c5 = -1.4452093e-8
	c7 = 6.5459673
)

// CelsiusToKelvin converts °C to K.
func CelsiusToKelvin(t float64) float64 { return t + kelvinOffset }

// SaturationPressure returns the saturation vapour pressure over liquid water
// at t °C, in Pa. Temperatures outside [MinSaturationTemp, MaxSaturationTemp]
// fail with DomainError.
func SaturationPressure(t float64) (float64, error) {
	if err := checkSaturationDomain("SaturationPressure", t); err != nil {
		return 0, err
	}
	return math.Exp(lnSaturationPressure(CelsiusToKelvin(t))), nil
}

func lnSaturationPressure(tk float64) float64 {
	return c1/tk + c2 + c3*tk + c4*tk*tk + c5*tk*tk*tk + c7*math.Log(tk)
}

// dlnSaturationPressure is d(ln Pws)/dT at tk kelvin.
func dlnSaturationPressure(tk float64) float64 {
	return -c1/(tk*tk) + c3 + 2*c4*tk + 3*c5*tk*tk + c7/tk
}

func checkSaturationDomain(op string, t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return newError(DomainError, op, "temperature %v is not finite", t)
	}
	if t < MinSaturationTemp || t > MaxSaturationTemp {
		return newError(DomainError, op, "temperature %.2f °C outside [%g, %g] °C",
			t, MinSaturationTemp, MaxSaturationTemp)
	}
	return nil
}
