package monitoring

import (
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlesng35/skybook/pkg/metrics"
)

type statStore struct {
	sampleSize int

	mu       sync.Mutex
	series   map[string]*sampleRing
	counters map[string]*counterEntry

	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore(sampleSize int) *statStore {
	return &statStore{
		sampleSize: sampleSize,
		series:     make(map[string]*sampleRing),
		counters:   make(map[string]*counterEntry),
	}
}

func seriesKey(name string, tags metrics.Tags) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	b.WriteByte('}')
	return b.String()
}

func cloneTags(tags metrics.Tags) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func (s *statStore) recordSample(name string, tags metrics.Tags, value float64) {
	key := seriesKey(name, tags)
	s.mu.Lock()
	ring, ok := s.series[key]
	if !ok {
		ring = &sampleRing{name: name, tags: cloneTags(tags), values: make([]float64, 0, s.sampleSize), capacity: s.sampleSize}
		s.series[key] = ring
	}
	ring.add(value)
	s.mu.Unlock()
}

type counterEntry struct {
	name  string
	tags  map[string]string
	value atomic.Uint64
}

func (s *statStore) recordCount(name string, tags metrics.Tags) {
	key := seriesKey(name, tags)
	s.mu.Lock()
	entry, ok := s.counters[key]
	if !ok {
		entry = &counterEntry{name: name, tags: cloneTags(tags)}
		s.counters[key] = entry
	}
	s.mu.Unlock()
	entry.value.Add(1)
}

func (s *statStore) summary() Summary {
	out := emptySummary()

	s.mu.Lock()
	keys := make([]string, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Timings = append(out.Timings, s.series[k].snapshot())
	}

	keys = keys[:0]
	for k := range s.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := s.counters[k]
		out.Counters = append(out.Counters, CounterSummary{Name: entry.name, Tags: entry.tags, Value: entry.value.Load()})
	}
	s.mu.Unlock()

	s.maintenance.Range(func(key, value any) bool {
		out.Maintenance.Jobs = append(out.Maintenance.Jobs, value.(*maintenanceStats).snapshot(key.(string)))
		return true
	})
	sort.Slice(out.Maintenance.Jobs, func(i, j int) bool {
		return out.Maintenance.Jobs[i].Job < out.Maintenance.Jobs[j].Job
	})
	return out
}

// sampleRing keeps the most recent observations of a series. Guarded by statStore.mu.
type sampleRing struct {
	name     string
	tags     map[string]string
	values   []float64
	capacity int
	next     int
	total    uint64
}

func (r *sampleRing) add(v float64) {
	r.total++
	if len(r.values) < r.capacity {
		r.values = append(r.values, v)
		return
	}
	r.values[r.next] = v
	r.next = (r.next + 1) % r.capacity
}

func (r *sampleRing) snapshot() TimingSummary {
	summary := TimingSummary{Name: r.name, Tags: r.tags, Count: r.total}
	if len(r.values) == 0 {
		return summary
	}
	sorted := append([]float64(nil), r.values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	summary.Mean = sum / float64(len(sorted))
	summary.Min = sorted[0]
	summary.Max = sorted[len(sorted)-1]
	summary.P50 = percentile(sorted, 50)
	summary.P95 = percentile(sorted, 95)
	summary.P99 = percentile(sorted, 99)
	return summary
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	if value, ok := s.maintenance.Load(job); ok {
		return value.(*maintenanceStats)
	}
	actual, _ := s.maintenance.LoadOrStore(job, &maintenanceStats{})
	return actual.(*maintenanceStats)
}

type maintenanceStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)
	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           time.Unix(0, m.lastRun.Load()),
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		ConsecutiveSuccess:  m.consecutiveSuccesses.Load(),
		LastSuccessAt:       time.Unix(0, m.lastSuccessfulRun.Load()),
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastError.Store(message)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	if result == "success" {
		m.consecutiveFailures.Store(0)
		m.consecutiveSuccesses.Add(1)
		m.lastSuccessfulRun.Store(now.UnixNano())
		return
	}
	m.consecutiveFailures.Add(1)
	m.consecutiveSuccesses.Store(0)
}
