package monitoring_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/skybook/internal/kvstore"
	"github.com/charlesng35/skybook/internal/monitoring"
	"github.com/charlesng35/skybook/internal/monitoring/checks"
	"github.com/charlesng35/skybook/pkg/metrics"
)

func setupModule(t *testing.T) *monitoring.Module {
	t.Helper()
	mod, err := monitoring.NewModule(monitoring.Options{Logger: zap.NewNop(), SampleSize: 100})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	return mod
}

func scrape(t *testing.T, mod *monitoring.Module) string {
	t.Helper()
	rec := httptest.NewRecorder()
	mod.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestSinkExportsPrometheusSeries(t *testing.T) {
	mod := setupModule(t)
	sink := mod.Sink()

	sink.Increment("cache_lookup", metrics.Tags{"result": "hit"})
	sink.Gauge("ratelimit_remaining", 3, nil)
	stop := sink.Timer("cache_operation", metrics.Tags{"op": "get"})
	stop(metrics.Tags{"result": "ok"})

	body := scrape(t, mod)
	require.Contains(t, body, `skybook_cache_lookup_total{result="hit"} 1`)
	require.Contains(t, body, `skybook_ratelimit_remaining 3`)
	require.Contains(t, body, `skybook_cache_operation_duration_seconds_count{op="get",result="ok"} 1`)
}

func TestSinkDropsMismatchedLabelSets(t *testing.T) {
	mod := setupModule(t)
	sink := mod.Sink()

	sink.Increment("events", metrics.Tags{"kind": "a"})
	sink.Increment("events", metrics.Tags{"other": "b"})
	sink.Increment("events", metrics.Tags{"kind": "a"})

	require.Contains(t, scrape(t, mod), `skybook_events_total{kind="a"} 2`)
}

func TestSummaryPercentiles(t *testing.T) {
	mod := setupModule(t)
	sink := mod.Sink()

	for i := 1; i <= 100; i++ {
		sink.Histogram("search_latency", float64(i), metrics.Tags{"route": "JFK-LHR"})
	}
	sink.Increment("cache_lookup", metrics.Tags{"result": "miss"})

	summary := mod.Summary()
	require.Len(t, summary.Timings, 1)
	timing := summary.Timings[0]
	require.Equal(t, "search_latency", timing.Name)
	require.Equal(t, map[string]string{"route": "JFK-LHR"}, timing.Tags)
	require.EqualValues(t, 100, timing.Count)
	require.Equal(t, 50.0, timing.P50)
	require.Equal(t, 95.0, timing.P95)
	require.Equal(t, 99.0, timing.P99)
	require.Equal(t, 1.0, timing.Min)
	require.Equal(t, 100.0, timing.Max)
	require.InDelta(t, 50.5, timing.Mean, 0.001)

	require.Len(t, summary.Counters, 1)
	require.EqualValues(t, 1, summary.Counters[0].Value)
}

func TestSummaryKeepsMostRecentSamples(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.Options{Logger: zap.NewNop(), SampleSize: 10})
	require.NoError(t, err)

	for i := 1; i <= 30; i++ {
		mod.Sink().Histogram("latency", float64(i), nil)
	}
	timing := mod.Summary().Timings[0]
	require.EqualValues(t, 30, timing.Count)
	require.Equal(t, 21.0, timing.Min)
	require.Equal(t, 30.0, timing.Max)
}

func TestNilModuleIsSafe(t *testing.T) {
	var mod *monitoring.Module
	require.NotNil(t, mod.Sink())
	mod.Sink().Increment("x", nil)
	require.Empty(t, mod.Summary().Timings)

	rec := httptest.NewRecorder()
	mod.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPILatencyAndMaintenance(t *testing.T) {
	mod := setupModule(t)

	monitoring.ObserveAPILatency("get", "/api/flights/search", 200, 20*time.Millisecond)
	monitoring.RecordMaintenanceRun("price_snapshot_retention", "success", "", time.Second)

	body := scrape(t, mod)
	require.Contains(t, body, `skybook_api_requests_total{method="GET",path="api/flights/search",status="200"} 1`)
	require.Contains(t, body, `skybook_maintenance_runs_total{job="price_snapshot_retention",result="success"} 1`)

	summary := monitoring.Snapshot()
	require.Len(t, summary.Maintenance.Jobs, 1)
	require.EqualValues(t, 1, summary.Maintenance.Jobs[0].TotalRuns)
}

func TestHealthManagerEvaluate(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("kvstore", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("panics", func(ctx context.Context) monitoring.ProbeResult {
		panic("boom")
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 3)
	require.Equal(t, "panics", report.Checks[2].Component)
	require.Equal(t, "boom", report.Checks[2].Details)

	live := manager.EvaluateLiveness(context.Background())
	require.True(t, live.Success)
	require.NotNil(t, live.Checks)
}

func TestHealthManagerTimeout(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.SetTimeout(20 * time.Millisecond)
	manager.RegisterReadiness(monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError("slow", ctx.Err(), 0)
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
}

func TestResultFromError(t *testing.T) {
	require.Equal(t, monitoring.StatusUp, monitoring.ResultFromError("x", nil, time.Second).Status)
	require.Equal(t, monitoring.StatusDown, monitoring.ResultFromError("x", errors.New("refused"), 0).Status)
	require.Equal(t, monitoring.StatusDegraded, monitoring.ResultFromError("x", context.DeadlineExceeded, 0).Status)
}

func TestKVStoreCheck(t *testing.T) {
	store := kvstore.NewMemoryStore(kvstore.WithJanitorInterval(0))

	result := checks.KVStore(store, false, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Equal(t, "in-memory store", result.Details)

	require.NoError(t, store.Close())
	result = checks.KVStore(store, false, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)

	result = checks.KVStore(nil, true, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
}

func TestMaintenanceCheck(t *testing.T) {
	setupModule(t)

	monitoring.RecordMaintenanceRun("price_snapshot_retention", "success", "", time.Second)
	result := checks.Maintenance(0).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	monitoring.RecordMaintenanceRun("price_snapshot_retention", "failure", "database locked", time.Second)
	result = checks.Maintenance(0).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.True(t, strings.Contains(result.Details, "database locked"))
}
