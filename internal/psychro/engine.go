package psychro

import (
	"math"
	"time"

	"psychro-dash/internal/mathx"
)

// Reading is one raw psychrometer sample.
type Reading struct {
	DryBulb   float64   // °C
	WetBulb   float64   // °C
	Timestamp time.Time // when the sample was taken; passed through untouched
}

// State is the complete psychrometric state derived from a Reading.
type State struct {
	DryBulb          float64   `json:"dryBulb"`          // °C
	WetBulb          float64   `json:"wetBulb"`          // °C
	RelativeHumidity float64   `json:"relativeHumidity"` // percent, 0..100
	DewPoint         float64   `json:"dewPoint"`         // °C
	AbsoluteHumidity float64   `json:"absoluteHumidity"` // kg water / kg dry air
	PartialPressure  float64   `json:"partialPressure"`  // Pa
	SpecificVolume   float64   `json:"specificVolume"`   // m³ / kg dry air
	Enthalpy         float64   `json:"enthalpy"`         // kJ / kg dry air
	Timestamp        time.Time `json:"timestamp"`
}

// Limits is the plausible sensor range applied to both temperatures, °C.
type Limits struct {
	MinC float64
	MaxC float64
}

// DefaultLimits matches the range accepted from the serial sensor.
func DefaultLimits() Limits {
	return Limits{MinC: -50, MaxC: 100}
}

// Engine turns readings into states. The zero value is not usable; build one
// with NewEngine. An Engine is immutable and may be shared between goroutines.
type Engine struct {
	limits        Limits
	maxIterations int
}

type Option func(*Engine)

// WithLimits overrides the plausible sensor range.
func WithLimits(l Limits) Option {
	return func(e *Engine) { e.limits = l }
}

// WithMaxIterations overrides the dew point iteration cap. Values <= 0 keep the default.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

func NewEngine(opts ...Option) Engine {
	e := Engine{
		limits:        DefaultLimits(),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func (e Engine) Limits() Limits     { return e.limits }
func (e Engine) MaxIterations() int { return e.maxIterations }

// Validate checks a reading without computing anything. Checks run in order:
// finiteness, correlation domain, wet bulb not above dry bulb, sensor range.
func (e Engine) Validate(r Reading) error {
	const op = "Validate"
	for _, f := range []struct {
		name string
		v    float64
	}{{"dry bulb", r.DryBulb}, {"wet bulb", r.WetBulb}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return newError(InvalidInput, op, "%s %v is not finite", f.name, f.v)
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"dry bulb", r.DryBulb}, {"wet bulb", r.WetBulb}} {
		if f.v < MinSaturationTemp || f.v > MaxSaturationTemp {
			return newError(DomainError, op, "%s %.2f °C outside [%g, %g] °C",
				f.name, f.v, MinSaturationTemp, MaxSaturationTemp)
		}
	}
	if r.WetBulb > r.DryBulb {
		return newError(InvalidInput, op, "wet bulb %.2f °C above dry bulb %.2f °C", r.WetBulb, r.DryBulb)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"dry bulb", r.DryBulb}, {"wet bulb", r.WetBulb}} {
		if !mathx.Between(f.v, e.limits.MinC, e.limits.MaxC) {
			return newError(InvalidInput, op, "%s %.2f °C outside plausible range [%g, %g] °C",
				f.name, f.v, e.limits.MinC, e.limits.MaxC)
		}
	}
	return nil
}

// Compute validates r and derives its full State, or returns an *Error.
func (e Engine) Compute(r Reading) (State, error) {
	const op = "Compute"
	if err := e.Validate(r); err != nil {
		return State{}, err
	}

	w, err := wetBulbHumidityRatio(op, r.DryBulb, r.WetBulb)
	if err != nil {
		return State{}, err
	}
	pw := partialPressure(w)

	pwsDry, err := SaturationPressure(r.DryBulb)
	if err != nil {
		return State{}, err
	}
	rh := mathx.Clamp(pw/pwsDry, 0, 1)

	td, _, err := SolveDewPoint(pw, r.DryBulb, e.maxIterations)
	if err != nil {
		return State{}, err
	}

	return State{
		DryBulb:          r.DryBulb,
		WetBulb:          r.WetBulb,
		RelativeHumidity: FractionToPercent(rh),
		DewPoint:         td,
		AbsoluteHumidity: humidityRatio(pw),
		PartialPressure:  pw,
		SpecificVolume:   SpecificVolume(r.DryBulb, w),
		Enthalpy:         Enthalpy(r.DryBulb, w),
		Timestamp:        r.Timestamp,
	}, nil
}
