package measurements

import (
	"context"
	"database/sql"
	"log/slog"
	"math"
	"net/http"

	"psychro-dash/internal/modules/measurements/controller"
	"psychro-dash/internal/modules/measurements/repository"
	"psychro-dash/internal/modules/measurements/service"
	"psychro-dash/internal/modules/measurements/types"
	"psychro-dash/internal/mqtt"
	"psychro-dash/internal/psychro"
	"psychro-dash/internal/serialport"
)

// firmwareDivergence is how far, in RH points, the firmware's own figure may
// drift from ours before it is worth a warning.
const firmwareDivergence = 2.0

type Ingester interface {
	Ingest(ctx context.Context, src types.Source, reading psychro.Reading) (types.Measurement, error)
}

func RegisterFeature(mux *http.ServeMux, db *sql.DB, engine psychro.Engine, logger *slog.Logger, sinks ...service.Sink) *service.Service {
	measurementRepository := repository.NewRepository(db)
	measurementService := service.NewService(engine, measurementRepository, logger, sinks...)
	measurementController := controller.NewMeasurementController(measurementService)
	measurementController.RegisterRoutes(mux)
	return measurementService
}

// RegisterMQTTHandler feeds readings from remote sensors into svc.
func RegisterMQTTHandler(subscriber mqtt.MQTTSubscriber, svc Ingester, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(ctx context.Context, msg mqtt.ReadingMessage) error {
		logger.Debug("processing reading message",
			"sensor_id", msg.SensorID,
			"timestamp", msg.Timestamp,
		)

		_, err := svc.Ingest(ctx,
			types.Source{Kind: types.SourceMQTT, ID: msg.SensorID},
			psychro.Reading{DryBulb: *msg.DryBulbC, WetBulb: *msg.WetBulbC, Timestamp: msg.Timestamp},
		)
		return err
	})
}

// SerialHandler feeds frames from the local psychrometer into svc. Values the
// firmware computed are only compared against ours.
func SerialHandler(svc Ingester, sourceID string, logger *slog.Logger) serialport.FrameHandler {
	src := types.Source{Kind: types.SourceSerial, ID: sourceID}
	return func(ctx context.Context, f serialport.Frame) error {
		m, err := svc.Ingest(ctx, src, f.Reading())
		if err != nil {
			return err
		}
		if f.Firmware == nil {
			return nil
		}
		firmwareRH := psychro.FractionToPercent(f.Firmware.RelativeHumidity)
		if math.Abs(firmwareRH-m.RelativeHumidity) > firmwareDivergence {
			logger.Warn("firmware relative humidity diverges",
				"source_id", sourceID,
				"firmware_rh", firmwareRH,
				"computed_rh", m.RelativeHumidity,
				"firmware_dew_point", f.Firmware.DewPoint,
				"computed_dew_point", m.DewPoint,
			)
		}
		return nil
	}
}
