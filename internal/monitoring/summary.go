package monitoring

import "time"

// Summary surfaces aggregated monitoring data for operators.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Timings     []TimingSummary    `json:"timings"`
	Counters    []CounterSummary   `json:"counters"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

// TimingSummary describes the retained observations of one series.
type TimingSummary struct {
	Name  string            `json:"name"`
	Tags  map[string]string `json:"tags,omitempty"`
	Count uint64            `json:"count"`
	Mean  float64           `json:"mean"`
	Min   float64           `json:"min"`
	Max   float64           `json:"max"`
	P50   float64           `json:"p50"`
	P95   float64           `json:"p95"`
	P99   float64           `json:"p99"`
}

type CounterSummary struct {
	Name  string            `json:"name"`
	Tags  map[string]string `json:"tags,omitempty"`
	Value uint64            `json:"value"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

func emptySummary() Summary {
	return Summary{
		GeneratedAt: time.Now(),
		Timings:     []TimingSummary{},
		Counters:    []CounterSummary{},
		Maintenance: MaintenanceSummary{Jobs: []MaintenanceJobSummary{}},
	}
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	return CurrentModule().Summary()
}
