package expiry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/candle-clicker/internal/metrics"
)

type fakeDeleter struct {
	calls   atomic.Int32
	removed int64
	err     error
	lastNow atomic.Value
}

func (f *fakeDeleter) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.calls.Add(1)
	f.lastNow.Store(now)
	return f.removed, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(&fakeDeleter{}, "every now and then", testLogger())
	assert.Error(t, err)
}

func TestSweep_PassesClockAndCounts(t *testing.T) {
	at := time.Date(2024, 5, 11, 9, 0, 0, 0, time.UTC)
	store := &fakeDeleter{removed: 3}
	m := metrics.New()

	s, err := New(store, "@every 1h", testLogger(), WithClock(func() time.Time { return at }), WithMetrics(m))
	require.NoError(t, err)

	n, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, at, store.lastNow.Load())
}

func TestSweep_Error(t *testing.T) {
	store := &fakeDeleter{err: errors.New("database is closed")}
	s, err := New(store, "@every 1h", testLogger())
	require.NoError(t, err)

	_, err = s.Sweep(context.Background())

	assert.Error(t, err)
}

func TestStartStop_RunsOnSchedule(t *testing.T) {
	store := &fakeDeleter{}
	s, err := New(store, "@every 1s", testLogger())
	require.NoError(t, err)

	s.Start()
	s.Start() // second call is a no-op

	assert.Eventually(t, func() bool { return store.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}
