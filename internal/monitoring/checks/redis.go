package checks

import (
	"context"
	"time"

	"github.com/charlesng35/skybook/internal/monitoring"
)

const defaultStoreTimeout = 2 * time.Second

// Pinger is satisfied by every kvstore.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore probes the shared key-value store. The cache and rate limiter fail
// open, so an unreachable store degrades the service instead of taking it down.
// When redis is not enabled the in-process store is reported as such.
func KVStore(store Pinger, redisEnabled bool, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("kvstore", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "store unavailable",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultStoreTimeout))
		defer cancel()

		if err := store.Ping(probeCtx); err != nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  err.Error(),
				Duration: time.Since(start),
			}
		}

		details := "redis"
		if !redisEnabled {
			details = "in-memory store"
		}
		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  details,
			Duration: time.Since(start),
		}
	})
}
