package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psychro-dash/internal/modules/measurements/repository"
	"psychro-dash/internal/modules/measurements/types"
	"psychro-dash/internal/psychro"
)

type fakeRepo struct {
	mu           sync.Mutex
	measurements []types.Measurement
	rejections   []types.Rejection
	insertErr    error

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeRepo) InsertMeasurement(_ context.Context, m types.Measurement) (int64, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = int64(len(f.measurements) + 1)
	f.measurements = append(f.measurements, m)
	return m.ID, nil
}

func (f *fakeRepo) GetLatest(context.Context) (types.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.measurements) == 0 {
		return types.Measurement{}, repository.ErrNotFound
	}
	return f.measurements[len(f.measurements)-1], nil
}

func (f *fakeRepo) GetMeasurements(_ context.Context, _, _ time.Time, limit int) ([]types.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.measurements
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]types.Measurement(nil), out...), nil
}

func (f *fakeRepo) CountMeasurements(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.measurements), nil
}

func (f *fakeRepo) InsertRejection(_ context.Context, r types.Rejection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejections = append(f.rejections, r)
	return nil
}

func (f *fakeRepo) GetRejections(_ context.Context, limit int) ([]types.Rejection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Rejection(nil), f.rejections...), nil
}

type recordingSink struct {
	name string
	err  error

	mu  sync.Mutex
	got []types.Measurement
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, m types.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, m)
	return s.err
}

func newTestService(repo *fakeRepo, sinks ...Sink) *Service {
	svc := NewService(psychro.NewEngine(), repo, slog.New(slog.NewTextHandler(io.Discard, nil)), sinks...)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	return svc
}

var serial = types.Source{Kind: types.SourceSerial, ID: "ttyUSB0"}

func TestIngest_SensorReadingIsStoredAndDelivered(t *testing.T) {
	repo := &fakeRepo{}
	broken := &recordingSink{name: "broken", err: errors.New("socket closed")}
	live := &recordingSink{name: "live"}
	svc := newTestService(repo, broken)
	svc.AddSink(live)

	m, err := svc.Ingest(context.Background(), serial, psychro.Reading{DryBulb: 25, WetBulb: 18})
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.ID)
	assert.Equal(t, serial, m.Source)
	assert.InDelta(t, 50, m.RelativeHumidity, 1)
	assert.Equal(t, svc.now(), m.Timestamp, "missing timestamp is filled in")

	require.Len(t, repo.measurements, 1)
	require.Len(t, live.got, 1, "a failing sink must not stop the others")
	assert.Equal(t, m, live.got[0])
	assert.Len(t, broken.got, 1)
}

func TestIngest_ManualEntryIsNotStored(t *testing.T) {
	repo := &fakeRepo{}
	sink := &recordingSink{name: "live"}
	svc := newTestService(repo, sink)

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	m, err := svc.Ingest(context.Background(), types.Source{Kind: types.SourceManual},
		psychro.Reading{DryBulb: 22, WetBulb: 16, Timestamp: ts})
	require.NoError(t, err)

	assert.Zero(t, m.ID)
	assert.Equal(t, ts, m.Timestamp)
	assert.Empty(t, repo.measurements)
	assert.Empty(t, sink.got)
}

func TestIngest_RejectionIsQuarantinedForSensors(t *testing.T) {
	repo := &fakeRepo{}
	sink := &recordingSink{name: "live"}
	svc := newTestService(repo, sink)

	_, err := svc.Ingest(context.Background(), serial, psychro.Reading{DryBulb: 25, WetBulb: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, psychro.InvalidInput)

	require.Len(t, repo.rejections, 1)
	rej := repo.rejections[0]
	assert.NotEmpty(t, rej.ID)
	assert.Equal(t, psychro.InvalidInput, rej.Code)
	assert.Equal(t, serial, rej.Source)
	assert.Equal(t, 30.0, *rej.WetBulb)
	assert.Contains(t, rej.Reason, "wet bulb")
	assert.Empty(t, repo.measurements)
	assert.Empty(t, sink.got)

	_, err = svc.Ingest(context.Background(), types.Source{Kind: types.SourceManual},
		psychro.Reading{DryBulb: 25, WetBulb: 30})
	assert.ErrorIs(t, err, psychro.InvalidInput)
	assert.Len(t, repo.rejections, 1, "manual rejections are not quarantined")
}

func TestIngest_StoreFailure(t *testing.T) {
	repo := &fakeRepo{insertErr: errors.New("disk full")}
	sink := &recordingSink{name: "live"}
	svc := newTestService(repo, sink)

	_, err := svc.Ingest(context.Background(), serial, psychro.Reading{DryBulb: 25, WetBulb: 18})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	_, isEngine := psychro.CodeOf(err)
	assert.False(t, isEngine)
	assert.Empty(t, sink.got, "unstored measurements are not broadcast")
}

func TestIngest_UnknownSource(t *testing.T) {
	svc := newTestService(&fakeRepo{})
	_, err := svc.Ingest(context.Background(), types.Source{Kind: "carrier-pigeon"}, psychro.Reading{DryBulb: 20, WetBulb: 15})
	assert.Error(t, err)
}

func TestIngest_OneWriteInFlight(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := types.Source{Kind: types.SourceMQTT, ID: "roof"}
			_, err := svc.Ingest(context.Background(), src, psychro.Reading{DryBulb: 20 + float64(i%5), WetBulb: 15})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, repo.measurements, 20)
	assert.Equal(t, int32(1), repo.maxInFlight.Load())
}

func TestSummary(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	empty, err := svc.Summary(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, empty.Count)

	for _, dry := range []float64{20, 22, 24} {
		_, err := svc.Ingest(ctx, serial, psychro.Reading{DryBulb: dry, WetBulb: 15})
		require.NoError(t, err)
	}

	sum, err := svc.Summary(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.InDelta(t, 22, sum.DryBulb.Mean, 1e-9)
	assert.InDelta(t, 2, sum.DryBulb.StdDev, 1e-9)
	assert.Equal(t, 20.0, sum.DryBulb.Min)
	assert.Equal(t, 24.0, sum.DryBulb.Max)
	assert.Greater(t, sum.RelativeHumidity.Max, sum.RelativeHumidity.Min)
	assert.LessOrEqual(t, sum.DewPoint.Max, sum.DryBulb.Max)
}

func TestSummary_SingleSampleHasZeroSpread(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)
	_, err := svc.Ingest(context.Background(), serial, psychro.Reading{DryBulb: 21, WetBulb: 15})
	require.NoError(t, err)

	sum, err := svc.Summary(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count)
	assert.Zero(t, sum.Enthalpy.StdDev)
	assert.Equal(t, sum.Enthalpy.Min, sum.Enthalpy.Max)
}

func TestLatestAndNotFound(t *testing.T) {
	svc := newTestService(&fakeRepo{})
	_, err := svc.Latest(context.Background())
	assert.True(t, IsNotFound(err))
}
