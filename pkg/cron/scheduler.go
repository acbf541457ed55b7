// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Reclassifier re-runs classification over stored low-confidence
// transactions. The import service implements it.
type Reclassifier interface {
	ReclassifyNeedsReview(ctx context.Context, limit int) (int, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron         *cron.Cron
	reclassifier Reclassifier
	schedule     string
	batchSize    int
	logger       *slog.Logger
}

// NewScheduler creates a new job scheduler. schedule is a standard 5-field
// cron expression; batchSize caps how many transactions one pass examines.
func NewScheduler(reclassifier Reclassifier, schedule string, batchSize int, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:         c,
		reclassifier: reclassifier,
		schedule:     schedule,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.reclassifyNeedsReview)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the re-classification pass (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.reclassifyNeedsReview()
}

// reclassifyNeedsReview runs one bounded pass over flagged transactions.
func (s *Scheduler) reclassifyNeedsReview() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	s.logger.Info("starting needs-review re-classification pass")

	updated, err := s.reclassifier.ReclassifyNeedsReview(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("re-classification pass failed", slog.Any("error", err))
		return
	}

	s.logger.Info("needs-review re-classification pass completed",
		slog.Int("updated", updated),
	)
}
