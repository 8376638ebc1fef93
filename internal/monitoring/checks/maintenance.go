package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/skybook/internal/monitoring"
)

const defaultMaintenanceMaxAge = 48 * time.Hour

// Maintenance verifies that the price-retention jobs keep succeeding. A job
// failing repeatedly marks the service degraded; stale data is not an outage.
func Maintenance(maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		summary := monitoring.Snapshot()
		if len(summary.Maintenance.Jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance jobs recorded"}
		}

		now := time.Now()
		status := monitoring.StatusUp
		var problems []string
		for _, job := range summary.Maintenance.Jobs {
			if job.ConsecutiveFailures > 0 {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": "+job.LastError)
				continue
			}
			if !job.LastRunAt.IsZero() && now.Sub(job.LastRunAt) > maxAge {
				status = monitoring.StatusDegraded
				problems = append(problems, job.Job+": last run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}
		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	})
}
