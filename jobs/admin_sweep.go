package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Sweeper is the slice of the elevation service the sweep task needs.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// NewAdminSweepHandler builds the asynq handler for TaskAdminSweep. The
// sweep is idempotent, so overlapping runs from a slow worker are harmless.
func NewAdminSweepHandler(sweeper Sweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		demoted, err := sweeper.SweepExpired(ctx)
		if err != nil {
			logger.Error("admin sweep failed", slog.Any("error", err))
			return err
		}
		if demoted > 0 {
			logger.Info("admin sweep completed", slog.Int("demoted", demoted))
		}
		return nil
	}
}
