package psychro

import (
	"fmt"
	"math"
)

// DefaultMaxIterations caps the dew point solver.
const DefaultMaxIterations = 100

const dewPointTolerance = 0.001 // K

// DewPoint returns the dew point of a psychrometer reading, °C.
func DewPoint(dryBulb, wetBulb float64) (float64, error) {
	pw, err := VaporPressure(dryBulb, wetBulb)
	if err != nil {
		return 0, err
	}
	td, _, err := SolveDewPoint(pw, dryBulb, DefaultMaxIterations)
	return td, err
}

// SolveDewPoint solves Pws(Td) = pw for Td, starting from start °C, and
// returns the root with the number of iterations used.
//
// Each step is a Newton update with the analytic slope of the correlation;
// iteration stops once the step is below 0.001 K. Pws is convex, so from a
// start above the root the iterates decrease monotonically onto it and a root
// below 0 °C surfaces as DomainError rather than a wrong answer.
func SolveDewPoint(pw, start float64, maxIterations int) (td float64, iterations int, err error) {
	const op = "SolveDewPoint"
	if math.IsNaN(pw) || math.IsInf(pw, 0) || pw <= 0 {
		return 0, 0, newError(InvalidInput, op, "vapour pressure %v must be positive and finite", pw)
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	td = start
	for i := 1; i <= maxIterations; i++ {
		pws, err := SaturationPressure(td)
		if err != nil {
			return 0, i, &Error{
				C:   DomainError,
				Op:  op,
				Msg: fmt.Sprintf("iterate %.3f °C left the correlation domain (vapour pressure %.1f Pa)", td, pw),
			}
		}
		slope := pws * dlnSaturationPressure(CelsiusToKelvin(td))
		delta := (pws - pw) / slope
		td -= delta
		if math.Abs(delta) < dewPointTolerance {
			return td, i, nil
		}
	}
	return 0, maxIterations, newError(ConvergenceError, op,
		"no convergence after %d iterations (vapour pressure %.1f Pa)", maxIterations, pw)
}
