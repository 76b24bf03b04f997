package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"psychro-dash/internal/modules/measurements/repository"
	"psychro-dash/internal/modules/measurements/types"
	"psychro-dash/internal/psychro"
)

// summaryLimit caps the rows folded into one Summary.
const summaryLimit = 100_000

// Sink receives every stored sensor measurement. Deliver errors are logged
// and never fail the ingestion.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, m types.Measurement) error
}

type Service struct {
	engine     psychro.Engine
	repository repository.MeasurementRepository
	logger     *slog.Logger
	now        func() time.Time

	// writeMu keeps at most one measurement write in flight.
	writeMu sync.Mutex

	sinksMu sync.RWMutex
	sinks   []Sink
}

func NewService(engine psychro.Engine, repository repository.MeasurementRepository, logger *slog.Logger, sinks ...Sink) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:     engine,
		repository: repository,
		logger:     logger,
		now:        time.Now,
		sinks:      sinks,
	}
}

func (s *Service) Engine() psychro.Engine { return s.engine }

// AddSink registers a sink for subsequent ingestions.
func (s *Service) AddSink(sink Sink) {
	s.sinksMu.Lock()
	s.sinks = append(s.sinks, sink)
	s.sinksMu.Unlock()
}

// Ingest computes the state of reading. Sensor sources are stored and then
// fanned out to the sinks; manual entries are only computed. A reading the
// engine refuses comes back as the engine's *psychro.Error, and for sensor
// sources is also recorded as a Rejection.
func (s *Service) Ingest(ctx context.Context, src types.Source, reading psychro.Reading) (types.Measurement, error) {
	if !src.Kind.Valid() {
		return types.Measurement{}, fmt.Errorf("ingest: unknown source kind %q", src.Kind)
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = s.now().UTC()
	}

	state, err := s.engine.Compute(reading)
	if err != nil {
		s.reject(ctx, src, reading, err)
		return types.Measurement{}, err
	}
	m := types.Measurement{Source: src, State: state}

	if !src.Kind.Persisted() {
		return m, nil
	}

	s.writeMu.Lock()
	m.ID, err = s.repository.InsertMeasurement(ctx, m)
	s.writeMu.Unlock()
	if err != nil {
		return types.Measurement{}, fmt.Errorf("store measurement: %w", err)
	}

	s.logger.Debug("measurement stored",
		"id", m.ID,
		"source", src.Kind,
		"source_id", src.ID,
		"relative_humidity", m.RelativeHumidity,
		"dew_point", m.DewPoint,
	)

	s.deliver(ctx, m)
	return m, nil
}

func (s *Service) reject(ctx context.Context, src types.Source, reading psychro.Reading, cause error) {
	code, ok := psychro.CodeOf(cause)
	if !ok {
		code = psychro.InvalidInput
	}
	s.logger.Warn("reading rejected",
		"source", src.Kind,
		"source_id", src.ID,
		"code", code,
		"dry_bulb", reading.DryBulb,
		"wet_bulb", reading.WetBulb,
		"error", cause,
	)
	if !src.Kind.Persisted() {
		return
	}

	dry, wet := reading.DryBulb, reading.WetBulb
	rej := types.Rejection{
		ID:         uuid.NewString(),
		Source:     src,
		DryBulb:    &dry,
		WetBulb:    &wet,
		Code:       code,
		Reason:     cause.Error(),
		ReceivedAt: s.now().UTC(),
	}
	s.writeMu.Lock()
	err := s.repository.InsertRejection(ctx, rej)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Error("failed to quarantine rejected reading", "id", rej.ID, "error", err)
	}
}

func (s *Service) deliver(ctx context.Context, m types.Measurement) {
	s.sinksMu.RLock()
	sinks := append([]Sink(nil), s.sinks...)
	s.sinksMu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Deliver(ctx, m); err != nil {
			s.logger.Warn("sink delivery failed", "sink", sink.Name(), "id", m.ID, "error", err)
		}
	}
}

func (s *Service) Latest(ctx context.Context) (types.Measurement, error) {
	return s.repository.GetLatest(ctx)
}

func (s *Service) Measurements(ctx context.Context, from, to time.Time, limit int) ([]types.Measurement, error) {
	return s.repository.GetMeasurements(ctx, from, to, limit)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repository.CountMeasurements(ctx)
}

func (s *Service) Rejections(ctx context.Context, limit int) ([]types.Rejection, error) {
	return s.repository.GetRejections(ctx, limit)
}

// Summary aggregates stored measurements with from <= time <= to.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (types.Summary, error) {
	ms, err := s.repository.GetMeasurements(ctx, from, to, summaryLimit)
	if err != nil {
		return types.Summary{}, err
	}
	return summarize(from, to, ms), nil
}

func summarize(from, to time.Time, ms []types.Measurement) types.Summary {
	sum := types.Summary{From: from, To: to, Count: len(ms)}
	if len(ms) == 0 {
		return sum
	}
	dry := make([]float64, len(ms))
	rh := make([]float64, len(ms))
	dew := make([]float64, len(ms))
	h := make([]float64, len(ms))
	for i, m := range ms {
		dry[i] = m.DryBulb
		rh[i] = m.RelativeHumidity
		dew[i] = m.DewPoint
		h[i] = m.Enthalpy
	}
	sum.DryBulb = describe(dry)
	sum.RelativeHumidity = describe(rh)
	sum.DewPoint = describe(dew)
	sum.Enthalpy = describe(h)
	return sum
}

func describe(xs []float64) types.Stats {
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		std = 0
	}
	return types.Stats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
	}
}

// IsNotFound reports whether err means no measurement exists yet.
func IsNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }
