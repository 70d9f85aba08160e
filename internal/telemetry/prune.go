package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/history"
)

// DefaultPruneInterval is how often history retention is enforced.
const DefaultPruneInterval = 10 * time.Minute

// RunPruner deletes history older than retention every interval until ctx
// is cancelled. It prunes once immediately.
func RunPruner(ctx context.Context, repo history.Repository, retention, interval time.Duration, logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}

	prune := func() {
		n, err := repo.Prune(ctx, retention)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				logger.Warn("history prune failed", "error", err)
			}
		case n > 0:
			logger.Debug("history pruned", "rows", n, "retention", retention)
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
