package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionWorkerInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically prunes
// journal records older than ttl. It stops when ctx is cancelled.
func StartRetentionWorker(ctx context.Context, j Journal, ttl time.Duration) {
	startRetentionWorker(ctx, j, ttl, retentionWorkerInterval)
}

func startRetentionWorker(ctx context.Context, j Journal, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Journal retention worker started", "interval", interval, "ttl", ttl)

		pruneExpired(ctx, j, ttl)
		for {
			select {
			case <-ticker.C:
				pruneExpired(ctx, j, ttl)
			case <-ctx.Done():
				slog.Info("Journal retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneExpired(ctx context.Context, j Journal, ttl time.Duration) {
	deleted, err := j.PruneBefore(ctx, time.Now().Add(-ttl))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Journal retention worker failed to prune", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Journal retention worker pruned exchanges", "count", deleted)
	}
}
