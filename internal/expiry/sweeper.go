// Package expiry physically removes direct messages past their deadline.
//
// Deleting is housekeeping only: every read already filters on expires_at,
// so a sweep that runs late (or never) can not make a dead message visible.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakif/candle-clicker/internal/metrics"
)

// sweepTimeout bounds a single DeleteExpired call.
const sweepTimeout = 30 * time.Second

// Deleter is the slice of repository.MessageRepository the sweeper needs.
type Deleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper runs Deleter.DeleteExpired on a cron schedule.
type Sweeper struct {
	store   Deleter
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	cron      *cron.Cron
	startOnce sync.Once
	stopOnce  sync.Once
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithMetrics records each run into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithClock overrides the time passed to DeleteExpired.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New validates schedule (standard cron syntax or descriptors such as
// "@every 1m") and returns a stopped Sweeper.
func New(store Deleter, schedule string, logger *slog.Logger, opts ...Option) (*Sweeper, error) {
	s := &Sweeper{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	s.cron = cron.New(
		cron.WithLogger(cronLogger),
		// A slow sweep must not pile up behind itself.
		cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("expiry: parsing schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins running sweeps in the background. Calling it twice is a no-op.
func (s *Sweeper) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting message expiry sweeper")
		s.cron.Start()
	})
}

// Stop prevents new sweeps and waits for a running one to finish, or for ctx
// to be done, whichever comes first.
func (s *Sweeper) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.logger.Info("stopping message expiry sweeper")
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
			err = fmt.Errorf("expiry: waiting for running sweep: %w", ctx.Err())
		}
	})
	return err
}

// Sweep deletes everything expired as of now and returns the count.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	start := time.Now()

	removed, err := s.store.DeleteExpired(ctx, s.now())
	if s.metrics != nil {
		s.metrics.SweepCompleted(removed, err)
	}
	if err != nil {
		s.logger.Error("message sweep failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return 0, err
	}

	if removed > 0 {
		s.logger.Info("expired messages removed",
			slog.Int64("count", removed),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return removed, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	// Errors are logged and counted inside Sweep; the next tick retries.
	_, _ = s.Sweep(ctx)
}
