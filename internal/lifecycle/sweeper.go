package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drives CheckTimeouts on a fixed interval. The scan itself is
// idempotent, so overlapping or repeated runs are harmless.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper. A non-positive interval falls back to
// one minute.
func NewSweeper(manager *Manager, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{manager: manager, interval: interval, logger: logger}
}

// Run sweeps until the context is canceled. One sweep runs immediately
// on start.
func (sw *Sweeper) Run(ctx context.Context) error {
	sw.sweep(ctx)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *Sweeper) sweep(ctx context.Context) {
	timedOut, err := sw.manager.CheckTimeouts(ctx)
	if err != nil {
		sw.logger.Error("timeout sweep failed", "error", err)
		return
	}
	if len(timedOut) > 0 {
		sw.logger.Info("timeout sweep transitioned executions", "count", len(timedOut))
	}
}
