package psychro

// wetBulbHumidityRatio applies the psychrometer equation to a reading and
// returns the humidity ratio W, kg water per kg dry air.
func wetBulbHumidityRatio(op string, dryBulb, wetBulb float64) (float64, error) {
	pwsWet, err := SaturationPressure(wetBulb)
	if err != nil {
		return 0, err
	}
	if pwsWet >= AtmosphericPressure {
		return 0, newError(DomainError, op, "wet bulb %.2f °C at or above the boiling point", wetBulb)
	}
	depression := dryBulb - wetBulb
	w := epsilon * (pwsWet - AtmosphericPressure*depression*psychrometerCoefficient) /
		(AtmosphericPressure - pwsWet)
	if w <= 0 {
		return 0, newError(InvalidInput, op,
			"wet-bulb depression %.2f K too large for wet bulb %.2f °C", depression, wetBulb)
	}
	return w, nil
}

// partialPressure converts a humidity ratio to vapour pressure, Pa.
func partialPressure(w float64) float64 {
	return AtmosphericPressure * w / (epsilon + w)
}

// humidityRatio converts a vapour pressure to a humidity ratio, kg/kg.
func humidityRatio(pw float64) float64 {
	return epsilon * pw / (AtmosphericPressure - pw)
}

// VaporPressure returns the partial pressure of water vapour, Pa, implied by
// a psychrometer reading.
func VaporPressure(dryBulb, wetBulb float64) (float64, error) {
	w, err := wetBulbHumidityRatio("VaporPressure", dryBulb, wetBulb)
	if err != nil {
		return 0, err
	}
	return partialPressure(w), nil
}

// RelativeHumidity returns Pw / Pws(dryBulb) as a fraction. It is not
// clamped; numerical noise just outside [0, 1] is left for the caller.
func RelativeHumidity(dryBulb, wetBulb float64) (float64, error) {
	w, err := wetBulbHumidityRatio("RelativeHumidity", dryBulb, wetBulb)
	if err != nil {
		return 0, err
	}
	pwsDry, err := SaturationPressure(dryBulb)
	if err != nil {
		return 0, err
	}
	return partialPressure(w) / pwsDry, nil
}

// HumidityRatio returns the absolute humidity 0.622·Pw/(Patm − Pw), kg/kg.
func HumidityRatio(dryBulb, wetBulb float64) (float64, error) {
	pw, err := VaporPressure(dryBulb, wetBulb)
	if err != nil {
		return 0, err
	}
	return humidityRatio(pw), nil
}

// SpecificVolume returns the volume of moist air per kg of dry air, m³/kg,
// for humidity ratio w.
func SpecificVolume(dryBulb, w float64) float64 {
	return DryAirGasConstant * CelsiusToKelvin(dryBulb) * (1 + 1.6078*w) / AtmosphericPressure
}

// Enthalpy returns the moist air enthalpy, kJ per kg of dry air.
func Enthalpy(dryBulb, w float64) float64 {
	return 1.006*dryBulb + w*(2501+1.805*dryBulb)
}
