package permission

import (
	"context"
	"fmt"
	"log/slog"
)

type Maintenance struct {
	repo   Repository
	clock  Clock
	logger *slog.Logger
}

func NewMaintenance(repo Repository, clock Clock, logger *slog.Logger) *Maintenance {
	return &Maintenance{repo: repo, clock: clock, logger: logger}
}

// SweepStalePending rejects every pending request whose window has passed
// and returns how many rows changed.
func (m *Maintenance) SweepStalePending(ctx context.Context) (int64, error) {
	now := m.clock.Now()
	count, err := m.repo.RejectStalePending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep stale pending: %w", err)
	}

	m.logger.Info("swept stale pending requests", "rejected_count", count, "cutoff", now)
	return count, nil
}
