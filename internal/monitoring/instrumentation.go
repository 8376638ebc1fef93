package monitoring

import (
	"strconv"
	"strings"
	"time"
)

// ObserveAPILatency records one HTTP request against the fixed API series.
func ObserveAPILatency(method, path string, status int, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	code := "unknown"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	module.metrics.apiRequests.WithLabelValues(method, path, code).Inc()
	observeDuration(module.metrics.apiLatency.WithLabelValues(method, path, code), duration)
	if duration < 0 {
		duration = 0
	}
	module.stats.recordSample("api_latency_seconds", map[string]string{"path": path}, duration.Seconds())
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	module.stats.maintenanceEntry(jobID).record(result, strings.TrimSpace(message), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	path = strings.Trim(path, "/")
	return strings.ReplaceAll(path, " ", "_")
}
