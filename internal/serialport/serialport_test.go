package serialport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psychro-dash/internal/config"
	"psychro-dash/internal/psychro"
)

func TestParseLine(t *testing.T) {
	f, err := ParseLine(" 25.0,18.0\r\n")
	require.NoError(t, err)
	assert.Equal(t, Frame{DryBulb: 25, WetBulb: 18}, f)
	assert.Equal(t, psychro.Reading{DryBulb: 25, WetBulb: 18}, f.Reading())

	f, err = ParseLine("25.00,18.00,0.51,14.03,0.0100")
	require.NoError(t, err)
	require.NotNil(t, f.Firmware)
	assert.Equal(t, 0.51, f.Firmware.RelativeHumidity)
	assert.Equal(t, 14.03, f.Firmware.DewPoint)
	assert.Equal(t, 0.01, f.Firmware.AbsoluteHumidity)
}

func TestParseLine_rejects(t *testing.T) {
	for _, line := range []string{"", "   ", "25", "25,18,0.5", "25,abc", "a,b,c,d,e", "1,2,3,4,5,6"} {
		_, err := ParseLine(line)
		assert.ErrorIs(t, err, ErrMalformedLine, "line %q", line)
	}

	_, err := ParseLine("25,18,51,14,0.01")
	assert.ErrorIs(t, err, psychro.InvalidInput, "RH given in percent")
}

type fakePorts struct {
	mu     sync.Mutex
	opens  int
	script []string
}

func (p *fakePorts) open(name string, baud int) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	if p.opens > len(p.script) {
		return nil, errors.New("no such device")
	}
	return io.NopCloser(strings.NewReader(p.script[p.opens-1])), nil
}

func (p *fakePorts) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

func TestReader_Run_reconnectsAndSkipsBadLines(t *testing.T) {
	ports := &fakePorts{script: []string{
		"25,18\ngarbage\n24,17\n",
		"23,16,0.5,12,0.009\n",
	}}
	cfg := config.SerialConfig{Port: "/dev/ttyTEST", Baud: 9600, ReconnectInterval: 5 * time.Millisecond}
	r := NewReader(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), ports.open)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var frames []Frame
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, func(_ context.Context, f Frame) error {
			mu.Lock()
			frames = append(frames, f)
			mu.Unlock()
			return nil
		})
	}()

	require.Eventually(t, func() bool { return ports.count() >= 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, frames, 3)
	assert.Equal(t, 25.0, frames[0].DryBulb)
	assert.Equal(t, 24.0, frames[1].DryBulb)
	assert.NotNil(t, frames[2].Firmware)
}

func TestNewReader_defaults(t *testing.T) {
	r := NewReader(config.SerialConfig{Port: "/dev/null"}, nil, nil)
	assert.Equal(t, 5*time.Second, r.cfg.ReconnectInterval)
	assert.NotNil(t, r.open)
	assert.NotNil(t, r.logger)
}
