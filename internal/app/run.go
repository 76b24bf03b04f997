package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"psychro-dash/internal/config"
	"psychro-dash/internal/db"
	"psychro-dash/internal/httpapi"
	"psychro-dash/internal/influx"
	"psychro-dash/internal/live"
	"psychro-dash/internal/logging"
	"psychro-dash/internal/modules/measurements"
	"psychro-dash/internal/mqtt"
	"psychro-dash/internal/psychro"
	"psychro-dash/internal/serialport"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"staticDir", cfg.StaticDir,
		"corsOrigins", cfg.CORSAllowedOrigins,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"dbConnMaxLifetime", cfg.ConnMaxLifetime,
		"serialPort", cfg.Serial.Port,
		"serialBaud", cfg.Serial.Baud,
		"mqttBroker", cfg.MQTT.Broker,
		"mqttPort", cfg.MQTT.Port,
		"mqttTopic", cfg.MQTT.Topic,
		"influxURL", cfg.Influx.URL,
		"influxBucket", cfg.Influx.Bucket,
		"engineMinTempC", cfg.Engine.MinTempC,
		"engineMaxTempC", cfg.Engine.MaxTempC,
		"engineMaxIterations", cfg.Engine.MaxIterations,
	)

	dbConn, err := db.Open(ctx, cfg, logging.Component(logger, "db"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()
	logger.Info("database connection successful")

	engine := psychro.NewEngine(
		psychro.WithLimits(psychro.Limits{MinC: cfg.Engine.MinTempC, MaxC: cfg.Engine.MaxTempC}),
		psychro.WithMaxIterations(cfg.Engine.MaxIterations),
	)

	// Background workers stop before the database closes.
	runCtx, cancelRun := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancelRun()
		wg.Wait()
	}()

	mux := httpapi.NewMux(dbConn, cfg.StaticDir)
	svc := measurements.RegisterFeature(mux, dbConn, engine, logging.Component(logger, "measurements"))

	hub := live.NewHub(svc.Latest, logging.Component(logger, "live"))
	hub.RegisterRoutes(mux)
	svc.AddSink(hub)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(runCtx)
	}()

	if cfg.Influx.Enabled() {
		sink := influx.NewSink(cfg.Influx, logging.Component(logger, "influx"))
		defer sink.Close()
		checkCtx, checkCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := sink.Check(checkCtx); err != nil {
			logger.Warn("influxdb unavailable (writes will be retried per measurement)", "error", err)
		}
		checkCancel()
		svc.AddSink(sink)
	}

	if cfg.MQTT.Enabled() {
		mqttLogger := logging.Component(logger, "mqtt")
		subscriber := mqtt.NewSubscriber(cfg.MQTT, mqttLogger)
		// Set the handler before Connect so OnConnectHandler can subscribe immediately.
		// The broker may send queued messages right after CONNACK.
		measurements.RegisterMQTTHandler(subscriber, svc, mqttLogger)
		svc.AddSink(subscriber)
		defer func() {
			logger.Info("mqtt disconnecting")
			subscriber.Disconnect()
		}()

		// Use a short timeout so startup does not block when the broker is down.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	if cfg.Serial.Enabled() {
		serialLogger := logging.Component(logger, "serial")
		reader := serialport.NewReader(cfg.Serial, serialLogger, nil)
		handle := measurements.SerialHandler(svc, filepath.Base(cfg.Serial.Port), serialLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reader.Run(runCtx, handle)
		}()
	}

	srv := httpapi.NewServer(cfg, mux, logging.Component(logger, "http"))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
