package psychro

import "math"

// FractionToPercent converts a 0..1 relative humidity to percent.
func FractionToPercent(f float64) float64 { return f * 100 }

// PercentToFraction converts a percent relative humidity to a 0..1 fraction.
func PercentToFraction(p float64) float64 { return p / 100 }

// ValidateRelativeHumidity rejects a directly measured relative humidity
// fraction that is not finite or outside [0, 1].
func ValidateRelativeHumidity(fraction float64) error {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) || fraction < 0 || fraction > 1 {
		return newError(InvalidInput, "ValidateRelativeHumidity",
			"relative humidity %v outside [0, 1]", fraction)
	}
	return nil
}
