package psychro

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_chartReference(t *testing.T) {
	// 25 °C dry bulb, 18 °C wet bulb at sea level.
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	st, err := NewEngine().Compute(Reading{DryBulb: 25, WetBulb: 18, Timestamp: ts})
	require.NoError(t, err)

	assert.InDelta(t, 50.0, st.RelativeHumidity, 1.0)
	assert.InDelta(t, 14.0, st.DewPoint, 0.5)
	assert.InDelta(t, 0.00999, st.AbsoluteHumidity, 0.0001)
	assert.InDelta(t, 1602, st.PartialPressure, 5)
	assert.InDelta(t, 0.858, st.SpecificVolume, 0.002)
	assert.InDelta(t, 50.6, st.Enthalpy, 0.2)
	assert.Equal(t, 25.0, st.DryBulb)
	assert.Equal(t, 18.0, st.WetBulb)
	assert.True(t, st.Timestamp.Equal(ts))
}

func TestCompute_saturatedAtFreezing(t *testing.T) {
	st, err := NewEngine().Compute(Reading{DryBulb: 0, WetBulb: 0})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, st.RelativeHumidity, 0.1)
	assert.InDelta(t, 0.0, st.DewPoint, 0.01)
}

func TestCompute_idempotent(t *testing.T) {
	e := NewEngine()
	r := Reading{DryBulb: 31.7, WetBulb: 22.4, Timestamp: time.Unix(1700000000, 0)}
	a, err := e.Compute(r)
	require.NoError(t, err)
	b, err := e.Compute(r)
	require.NoError(t, err)
	assert.True(t, a == b, "repeated Compute differs: %+v vs %+v", a, b)
}

func TestCompute_concurrentCallers(t *testing.T) {
	e := NewEngine()
	r := Reading{DryBulb: 22, WetBulb: 16}
	want, err := e.Compute(r)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]State, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.Compute(r)
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		assert.Equal(t, want, got, "goroutine %d", i)
	}
}

func TestCompute_rejections(t *testing.T) {
	tests := []struct {
		name string
		r    Reading
		opts []Option
		want Code
	}{
		{name: "wet bulb above dry bulb", r: Reading{DryBulb: 25, WetBulb: 30}, want: InvalidInput},
		{name: "NaN dry bulb", r: Reading{DryBulb: nan(), WetBulb: 10}, want: InvalidInput},
		{name: "infinite wet bulb", r: Reading{DryBulb: 20, WetBulb: inf()}, want: InvalidInput},
		{name: "far below freezing", r: Reading{DryBulb: -60, WetBulb: -62}, want: DomainError},
		{name: "below freezing inside sensor range", r: Reading{DryBulb: -5, WetBulb: -6}, want: DomainError},
		{name: "boiling wet bulb", r: Reading{DryBulb: 100, WetBulb: 100}, want: DomainError},
		{name: "depression too large", r: Reading{DryBulb: 40, WetBulb: 5}, want: InvalidInput},
		{name: "dew point below freezing", r: Reading{DryBulb: 10, WetBulb: 2}, want: DomainError},
		{
			name: "outside configured range",
			r:    Reading{DryBulb: 45, WetBulb: 30},
			opts: []Option{WithLimits(Limits{MinC: 0, MaxC: 40})},
			want: InvalidInput,
		},
		{
			name: "iteration cap",
			r:    Reading{DryBulb: 25, WetBulb: 18},
			opts: []Option{WithMaxIterations(1)},
			want: ConvergenceError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := NewEngine(tt.opts...).Compute(tt.r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "err = %v, want code %s", err, tt.want)
			assert.Equal(t, State{}, st, "no partial state on failure")

			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.want, pe.Code())
		})
	}
}

func TestNewEngine_options(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, DefaultLimits(), e.Limits())
	assert.Equal(t, DefaultMaxIterations, e.MaxIterations())

	e = NewEngine(WithMaxIterations(0), WithLimits(Limits{MinC: 5, MaxC: 35}))
	assert.Equal(t, DefaultMaxIterations, e.MaxIterations())
	assert.Equal(t, Limits{MinC: 5, MaxC: 35}, e.Limits())
}

func TestCodeOf(t *testing.T) {
	_, err := NewEngine().Compute(Reading{DryBulb: 20, WetBulb: 21})
	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, InvalidInput, code)

	code, ok = CodeOf(DomainError)
	assert.True(t, ok)
	assert.Equal(t, DomainError, code)

	_, ok = CodeOf(errors.New("unrelated"))
	assert.False(t, ok)
	_, ok = CodeOf(nil)
	assert.False(t, ok)
}
