// Package cron runs the scheduled retention sweeps.
package cron

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jsearch/internal/queue"
)

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *queue.Sweeper
	logger  *zap.Logger
}

// New creates a new cron scheduler.
func New(sweeper *queue.Sweeper, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		sweeper: sweeper,
		logger:  logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Completed-job sweep - every hour
	s.cron.AddFunc("0 0 * * * *", func() {
		s.logger.Debug("Running: completed-job sweep")
		s.runCompletedSweep()
	})

	// Stale-job sweep - daily at 3 AM
	s.cron.AddFunc("0 0 3 * * *", func() {
		s.logger.Debug("Running: stale-job sweep")
		s.runStaleSweep()
	})

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop stops the scheduler and returns a context that closes once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runCompletedSweep() {
	defer s.recoverFromPanic("completedSweep")
	if _, err := s.sweeper.CleanupCompleted(); err != nil {
		s.logger.Error("completed-job sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) runStaleSweep() {
	defer s.recoverFromPanic("staleSweep")
	if _, err := s.sweeper.CleanupStale(); err != nil {
		s.logger.Error("stale-job sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) recoverFromPanic(job string) {
	if r := recover(); r != nil {
		s.logger.Error("cron job panicked",
			zap.String("job", job),
			zap.Any("panic", r))
	}
}
