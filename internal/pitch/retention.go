package pitch

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/pitch-tank/internal/store"
)

// DefaultRetentionInterval is how often idle sessions are swept.
const DefaultRetentionInterval = 15 * time.Minute

// PurgeCallback is called for every session removed by the retention worker.
type PurgeCallback func(sessionID string)

// StartRetentionWorker runs a background goroutine that periodically deletes
// sessions idle for longer than ttl. A zero ttl disables the worker.
func StartRetentionWorker(ctx context.Context, repo store.Repository, ttl, interval time.Duration, onPurge PurgeCallback) {
	if ttl <= 0 {
		slog.Info("Retention worker disabled")
		return
	}
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				PurgeIdleSessions(ctx, repo, ttl, onPurge)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// PurgeIdleSessions runs one sweep and returns the number of sessions removed.
func PurgeIdleSessions(ctx context.Context, repo store.Repository, ttl time.Duration, onPurge PurgeCallback) int {
	deleted, err := repo.DeleteIdleSessions(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention sweep interrupted", "error", err)
			return 0
		}
		slog.Error("Retention worker failed to purge sessions", "error", err)
		return 0
	}
	if len(deleted) == 0 {
		return 0
	}

	for _, id := range deleted {
		if onPurge != nil {
			onPurge(id)
		}
	}
	slog.Info("Retention worker purged idle sessions", "count", len(deleted))
	return len(deleted)
}
