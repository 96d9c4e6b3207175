// Package scheduler triggers the daily pipeline run on a cron spec and
// retries a failed run within a small budget before escalating.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// RunFunc executes one pipeline pass.
type RunFunc func(ctx context.Context, dryRun bool) (seminar.Counters, error)

// Config controls the trigger and its retry budget.
type Config struct {
	// Cron is a standard five-field spec evaluated in Location.
	Cron     string
	Location *time.Location

	// RetryAttempts is the number of retries after a failed run; zero
	// means a failed run escalates immediately.
	RetryAttempts int
	RetryDelay    time.Duration

	DryRun bool
}

// Scheduler owns the cron loop around the pipeline.
type Scheduler struct {
	cfg    Config
	run    RunFunc
	cron   *cron.Cron
	logger *zap.Logger
}

// New validates the cron spec up front and builds a Scheduler.
func New(cfg Config, run RunFunc, logger *zap.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", cfg.Cron, err)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{cfg: cfg, run: run, logger: logger}, nil
}

// Start arms the cron trigger. Each firing runs the pipeline with the
// retry budget applied; overlapping runs cannot happen because cron
// entries run sequentially on one goroutine here.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.cfg.Location))
	_, err := c.AddFunc(s.cfg.Cron, func() {
		s.RunNow(ctx)
	})
	if err != nil {
		return fmt.Errorf("register cron job: %w", err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("scheduler armed",
		zap.String("cron", s.cfg.Cron),
		zap.String("timezone", s.cfg.Location.String()))
	return nil
}

// Stop halts the trigger and waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunNow executes the pipeline immediately, applying the retry budget.
// When every attempt fails it emits one escalation log entry so an
// operator is paged exactly once per failed cycle.
func (s *Scheduler) RunNow(ctx context.Context) {
	attempts := s.cfg.RetryAttempts + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		counters, err := s.run(ctx, s.cfg.DryRun)
		if err == nil {
			s.logger.Info("scheduled run succeeded",
				zap.Int("attempt", attempt),
				zap.Int("collected", counters.Collected),
				zap.Int("new_important", counters.NewImportant),
				zap.Int("sent", counters.Sent),
				zap.Int("failed", counters.Failed))
			return
		}
		lastErr = err
		s.logger.Error("scheduled run failed",
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(err))

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			s.logger.Warn("retry abandoned, shutting down", zap.Error(ctx.Err()))
			return
		case <-time.After(s.cfg.RetryDelay):
		}
	}
	s.logger.Error("all run attempts exhausted, operator attention required",
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
}
