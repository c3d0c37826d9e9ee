package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper is the maintenance job the scheduler runs.
type Sweeper interface {
	SweepStalePending(ctx context.Context) (int64, error)
}

// Scheduler runs the stale-request sweep on a fixed interval until stopped.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewScheduler(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 7 * 24 * time.Hour
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
	}
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	count, err := s.sweeper.SweepStalePending(ctx)
	if err != nil {
		s.logger.Error("stale pending sweep failed", "error", err)
		return 0, err
	}
	s.logger.Info("stale pending sweep finished",
		"rejected_count", count,
		"duration_ms", time.Since(start).Milliseconds())
	return count, nil
}

// Start sweeps once immediately and then every interval. It returns at once;
// the loop ends when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.once.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()

			_, _ = s.RunOnce(ctx)
			for {
				select {
				case <-ticker.C:
					_, _ = s.RunOnce(ctx)
				case <-ctx.Done():
					s.logger.Info("maintenance scheduler stopped")
					return
				}
			}
		}()

		s.logger.Info("maintenance scheduler started", "interval", s.interval.String())
	})
}

// Stop ends the loop and waits for an in-flight sweep to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
