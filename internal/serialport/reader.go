package serialport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"psychro-dash/internal/config"
)

// Opener opens the named port at the given baud rate.
type Opener func(name string, baud int) (io.ReadCloser, error)

// FrameHandler receives every well-formed frame. Its error is logged only.
type FrameHandler func(ctx context.Context, f Frame) error

func OpenSerial(name string, baud int) (io.ReadCloser, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

type Reader struct {
	cfg    config.SerialConfig
	open   Opener
	logger *slog.Logger
}

func NewReader(cfg config.SerialConfig, logger *slog.Logger, open Opener) *Reader {
	if open == nil {
		open = OpenSerial
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}
	return &Reader{cfg: cfg, open: open, logger: logger}
}

// Run reads frames until ctx is done, reopening the port after every
// failure or EOF.
func (r *Reader) Run(ctx context.Context, handle FrameHandler) error {
	for {
		err := r.readOnce(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn("serial port unavailable",
			"port", r.cfg.Port,
			"error", err,
			"retry_in", r.cfg.ReconnectInterval,
		)

		t := time.NewTimer(r.cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (r *Reader) readOnce(ctx context.Context, handle FrameHandler) error {
	port, err := r.open(r.cfg.Port, r.cfg.Baud)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.cfg.Port, err)
	}
	r.logger.Info("serial port opened", "port", r.cfg.Port, "baud", r.cfg.Baud)

	// Unblock the scanner when ctx ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
		}
	}()
	defer port.Close()

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		line := scanner.Text()
		frame, err := ParseLine(line)
		if err != nil {
			r.logger.Warn("dropping serial line", "port", r.cfg.Port, "line", line, "error", err)
			continue
		}
		if err := handle(ctx, frame); err != nil {
			r.logger.Debug("serial frame not accepted", "port", r.cfg.Port, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("serial stream ended")
}
