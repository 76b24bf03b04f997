package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"psychro-dash/internal/modules/measurements/types"
	"psychro-dash/internal/psychro"
)

//go:embed sql/insert-measurement.sql
var insertMeasurementSQL string

//go:embed sql/get-latest-measurement.sql
var getLatestMeasurementSQL string

//go:embed sql/get-measurements.sql
var getMeasurementsSQL string

//go:embed sql/count-measurements.sql
var countMeasurementsSQL string

//go:embed sql/insert-rejection.sql
var insertRejectionSQL string

//go:embed sql/get-rejections.sql
var getRejectionsSQL string

// timeLayout is fixed width so that text comparison orders timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var ErrNotFound = errors.New("measurement not found")

type MeasurementRepository interface {
	InsertMeasurement(ctx context.Context, m types.Measurement) (int64, error)
	GetLatest(ctx context.Context) (types.Measurement, error)
	// GetMeasurements returns at most limit of the newest rows with from <= time <= to,
	// oldest first. A zero from or to leaves that side open.
	GetMeasurements(ctx context.Context, from, to time.Time, limit int) ([]types.Measurement, error)
	CountMeasurements(ctx context.Context) (int, error)
	InsertRejection(ctx context.Context, r types.Rejection) error
	GetRejections(ctx context.Context, limit int) ([]types.Rejection, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) MeasurementRepository {
	return &repositoryImpl{db: db}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func (r *repositoryImpl) InsertMeasurement(ctx context.Context, m types.Measurement) (int64, error) {
	if !m.Source.Kind.Persisted() {
		return 0, fmt.Errorf("insert measurement: source kind %q is not stored", m.Source.Kind)
	}
	if m.Timestamp.IsZero() {
		return 0, errors.New("insert measurement: missing timestamp")
	}
	res, err := r.db.ExecContext(ctx, insertMeasurementSQL,
		string(m.Source.Kind), m.Source.ID, formatTime(m.Timestamp),
		m.DryBulb, m.WetBulb, m.RelativeHumidity, m.DewPoint,
		m.AbsoluteHumidity, m.PartialPressure, m.SpecificVolume, m.Enthalpy,
	)
	if err != nil {
		return 0, fmt.Errorf("insert measurement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert measurement: last insert id: %w", err)
	}
	return id, nil
}

func (r *repositoryImpl) GetLatest(ctx context.Context) (types.Measurement, error) {
	m, err := scanMeasurement(r.db.QueryRowContext(ctx, getLatestMeasurementSQL))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Measurement{}, ErrNotFound
	}
	return m, err
}

func (r *repositoryImpl) GetMeasurements(ctx context.Context, from, to time.Time, limit int) ([]types.Measurement, error) {
	rows, err := r.db.QueryContext(ctx, getMeasurementsSQL,
		sql.Named("from", formatTime(from)),
		sql.Named("to", formatTime(to)),
		sql.Named("limit", limit),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close measurements rows", "error", err)
		}
	}()

	out := []types.Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) CountMeasurements(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countMeasurementsSQL).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(s scanner) (types.Measurement, error) {
	var (
		m    types.Measurement
		kind string
		ts   string
	)
	err := s.Scan(&m.ID, &kind, &m.Source.ID, &ts,
		&m.DryBulb, &m.WetBulb, &m.RelativeHumidity, &m.DewPoint,
		&m.AbsoluteHumidity, &m.PartialPressure, &m.SpecificVolume, &m.Enthalpy,
	)
	if err != nil {
		return types.Measurement{}, err
	}
	m.Source.Kind = types.SourceKind(kind)
	if m.Timestamp, err = parseTime(ts); err != nil {
		return types.Measurement{}, err
	}
	return m, nil
}

func finiteOrNull(p *float64) any {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	return *p
}

func (r *repositoryImpl) InsertRejection(ctx context.Context, rej types.Rejection) error {
	if rej.ID == "" {
		return errors.New("insert rejection: missing id")
	}
	_, err := r.db.ExecContext(ctx, insertRejectionSQL,
		rej.ID, string(rej.Source.Kind), rej.Source.ID,
		finiteOrNull(rej.DryBulb), finiteOrNull(rej.WetBulb),
		string(rej.Code), rej.Reason, formatTime(rej.ReceivedAt),
	)
	if err != nil {
		return fmt.Errorf("insert rejection: %w", err)
	}
	return nil
}

func (r *repositoryImpl) GetRejections(ctx context.Context, limit int) ([]types.Rejection, error) {
	rows, err := r.db.QueryContext(ctx, getRejectionsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close rejections rows", "error", err)
		}
	}()

	out := []types.Rejection{}
	for rows.Next() {
		var (
			rej      types.Rejection
			kind     string
			code     string
			ts       string
			dry, wet sql.NullFloat64
		)
		if err := rows.Scan(&rej.ID, &kind, &rej.Source.ID, &dry, &wet, &code, &rej.Reason, &ts); err != nil {
			return nil, err
		}
		rej.Source.Kind = types.SourceKind(kind)
		rej.Code = psychro.Code(code)
		if dry.Valid {
			rej.DryBulb = &dry.Float64
		}
		if wet.Valid {
			rej.WetBulb = &wet.Float64
		}
		if rej.ReceivedAt, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, rej)
	}
	return out, rows.Err()
}
