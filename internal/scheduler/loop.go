// Package scheduler runs the background loops that move pipelines forward:
// the preparer builds the stage graph of runs whose materials changed, and
// the assigner hands pending jobs to idle agents.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// cycler is one pass of a background loop.
type cycler interface {
	Cycle(ctx context.Context) (int, error)
}

// run calls c.Cycle immediately and then every interval until ctx is done.
// A failed cycle is logged and the loop continues.
func run(ctx context.Context, name string, interval time.Duration, c cycler, logger *slog.Logger) error {
	logger = logger.With("loop", name)
	logger.Info("scheduler loop started", "interval", interval.String())
	defer logger.Info("scheduler loop stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := c.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("scheduler cycle failed", "error", err)
		} else if n > 0 {
			logger.Debug("scheduler cycle finished", "handled", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
