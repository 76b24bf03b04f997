package controller

import (
	"context"
	"net/http"
	"time"

	"psychro-dash/internal/modules/measurements/types"
	"psychro-dash/internal/psychro"
)

// MeasurementService is what the HTTP handlers need from the service layer.
type MeasurementService interface {
	Ingest(ctx context.Context, src types.Source, reading psychro.Reading) (types.Measurement, error)
	Latest(ctx context.Context) (types.Measurement, error)
	Measurements(ctx context.Context, from, to time.Time, limit int) ([]types.Measurement, error)
	Count(ctx context.Context) (int, error)
	Rejections(ctx context.Context, limit int) ([]types.Rejection, error)
	Summary(ctx context.Context, from, to time.Time) (types.Summary, error)
}

type MeasurementController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type measurementControllerImpl struct {
	service MeasurementService
	now     func() time.Time
}

func NewMeasurementController(service MeasurementService) MeasurementController {
	return &measurementControllerImpl{service: service, now: time.Now}
}

func (c *measurementControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/measurements", c.handleMeasurements)
	mux.HandleFunc("GET /api/v1/measurements/latest", c.handleLatest)
	mux.HandleFunc("GET /api/v1/measurements/count", c.handleCount)
	mux.HandleFunc("GET /api/v1/measurements/summary", c.handleSummary)
	mux.HandleFunc("POST /api/v1/psychrometrics", c.handleCompute)
	mux.HandleFunc("GET /api/v1/rejections", c.handleRejections)
}
