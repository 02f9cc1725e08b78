// Package jobs runs background maintenance tasks on a cron schedule
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// jobTimeout bounds a single run of a scheduled job
const jobTimeout = time.Minute

// Scheduler runs named jobs on cron schedules
type Scheduler struct {
	c      *cron.Cron
	logger *zap.Logger
}

// NewScheduler creates a new scheduler. Jobs start running after Start.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		c:      cron.New(),
		logger: logger,
	}
}

// AddJob schedules job under name. schedule is a standard cron spec or a descriptor such as "@every 1h".
func (s *Scheduler) AddJob(name, schedule string, job func(ctx context.Context) error) error {
	_, err := s.c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Debug("scheduled job completed", zap.String("job", name), zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", name, err)
	}

	s.logger.Info("scheduled job queued", zap.String("job", name), zap.String("schedule", schedule))
	return nil
}

// Start starts running scheduled jobs in the background
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stopped before running jobs completed")
	}
}
