package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/requestcontext"
)

// Runner is the part of Job the scheduler drives.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Scheduler runs reconciliation for the active term on a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start blocks, running the job every interval until ctx is cancelled. A failed
// run is logged and retried on the next tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("reconcile interval must be positive")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	ctx = requestcontext.WithActor(ctx, id.SystemActor)
	_, err := s.runner.Run(ctx, Request{})
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
	case dErrors.HasCode(err, dErrors.CodeConflict):
		s.logger.DebugContext(ctx, "scheduled reconciliation skipped", "error", err)
	default:
		s.logger.ErrorContext(ctx, "scheduled reconciliation failed", "error", err)
	}
}
