// Package jobs runs periodic maintenance against the booking service.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/ground-booking/internal/application"
)

// ElapsedSweeper settles bookings whose interval has ended.
type ElapsedSweeper interface {
	SweepElapsed(ctx context.Context) (application.SweepReport, error)
}

// Sweeper runs SweepElapsed on a cron schedule. Runs never overlap.
type Sweeper struct {
	cron    *cron.Cron
	target  ElapsedSweeper
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.Mutex
	base context.Context
}

// NewSweeper schedules target with a standard cron expression or a
// descriptor such as "@every 5m".
func NewSweeper(schedule string, target ElapsedSweeper, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		target:  target,
		logger:  logger.With("component", "sweeper"),
		timeout: time.Minute,
		base:    context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid sweeper schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *Sweeper) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("sweeper started", "entries", len(s.cron.Entries()))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
	return nil
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (application.SweepReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	report, err := s.target.SweepElapsed(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed", "error", err, "error_kind", application.ErrorKind(err))
		return report, err
	}
	s.logger.DebugContext(ctx, "sweep finished",
		"completed", report.Completed,
		"abandoned", report.Abandoned,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

func (s *Sweeper) tick() {
	s.mu.Lock()
	ctx := s.base
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	_, _ = s.RunOnce(ctx)
}
