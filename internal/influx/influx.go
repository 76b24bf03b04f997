package influx

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"psychro-dash/internal/config"
	"psychro-dash/internal/modules/measurements/types"
)

const measurementName = "psychrometric_state"

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Sink mirrors accepted measurements into an InfluxDB bucket.
type Sink struct {
	client influxdb2.Client
	writer pointWriter
	logger *slog.Logger
}

func NewSink(cfg config.InfluxConfig, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Sink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger: logger,
	}
}

// Check reports whether the server is healthy.
func (s *Sink) Check(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health: %w", err)
	}
	if health.Status != domain.HealthCheckStatusPass {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health check failed: %s %s", health.Status, msg)
	}
	return nil
}

func (s *Sink) Name() string { return "influxdb" }

func (s *Sink) Deliver(ctx context.Context, m types.Measurement) error {
	if err := s.writer.WritePoint(ctx, NewPoint(m)); err != nil {
		return fmt.Errorf("write influxdb point: %w", err)
	}
	s.logger.Debug("influxdb point written", "source_kind", m.Source.Kind, "source_id", m.Source.ID)
	return nil
}

func (s *Sink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func NewPoint(m types.Measurement) *write.Point {
	return influxdb2.NewPoint(
		measurementName,
		map[string]string{
			"source_kind": string(m.Source.Kind),
			"source_id":   m.Source.ID,
		},
		map[string]interface{}{
			"dry_bulb_c":          m.DryBulb,
			"wet_bulb_c":          m.WetBulb,
			"relative_humidity":   m.RelativeHumidity,
			"dew_point_c":         m.DewPoint,
			"absolute_humidity":   m.AbsoluteHumidity,
			"partial_pressure_pa": m.PartialPressure,
			"specific_volume":     m.SpecificVolume,
			"enthalpy_kj_kg":      m.Enthalpy,
		},
		m.Timestamp,
	)
}
