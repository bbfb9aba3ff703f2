package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Retrier resubmits results that could not be delivered.
type Retrier interface {
	RetryPending(ctx context.Context) (int, error)
}

// RetryScheduler periodically retries pending result submissions.
type RetryScheduler struct {
	log      *zap.Logger
	retrier  Retrier
	interval time.Duration
}

func NewRetryScheduler(log *zap.Logger, retrier Retrier, interval time.Duration) *RetryScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RetryScheduler{log: log, retrier: retrier, interval: interval}
}

// Run retries once immediately and then on every tick until ctx is done.
func (s *RetryScheduler) Run(ctx context.Context) error {
	s.log.Info("Starting pending result scheduler...", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runRetry(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Pending result scheduler stopped")
			return nil
		case <-ticker.C:
			s.runRetry(ctx)
		}
	}
}

func (s *RetryScheduler) runRetry(ctx context.Context) {
	n, err := s.retrier.RetryPending(ctx)
	if err != nil && ctx.Err() == nil {
		s.log.Error("Failed to retry pending results", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("Delivered pending results", zap.Int("count", n))
		return
	}
	s.log.Debug("No pending results delivered")
}
