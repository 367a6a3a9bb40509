package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"discuit_search/internal/domain"
	"discuit_search/internal/service"
)

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context) (*domain.ReconcileStats, error)
}

type Scheduler struct {
	reconciler Reconciler
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler. A zero interval runs at most the startup
// pass.
func NewScheduler(reconciler Reconciler, interval time.Duration, runOnStart bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "run_on_start", s.runOnStart)

	if s.runOnStart {
		s.runReconcile(ctx)
	}

	if s.interval <= 0 {
		<-ctx.Done()
		s.logger.Info("scheduler stopped")
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runReconcile(ctx)
		}
	}
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	_, err := s.reconciler.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrReconcileRunning):
		s.logger.Info("reconciliation already in progress, skipping")
	case ctx.Err() != nil:
	default:
		s.logger.Error("reconciliation failed", "error", err)
	}
}
