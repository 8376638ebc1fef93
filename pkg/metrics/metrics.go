// Package metrics defines the instrumentation sink consumed by the cache and
// rate-limiting layers. The Prometheus-backed implementation lives in
// internal/monitoring.
package metrics

import "time"

// Tags are optional dimensions attached to a sample.
type Tags map[string]string

// Sink receives counters, gauges, histogram observations and timings.
type Sink interface {
	Increment(name string, tags Tags)
	Gauge(name string, value float64, tags Tags)
	Histogram(name string, value float64, tags Tags)
	// Timer starts a timing and returns a function that records the elapsed
	// duration (in seconds) as a histogram sample when called. Tags passed to
	// the stop function are merged over the start tags.
	Timer(name string, tags Tags) func(extra Tags) time.Duration
}

// Nop returns a sink that discards every sample.
func Nop() Sink { return nopSink{} }

type nopSink struct{}

func (nopSink) Increment(string, Tags)          {}
func (nopSink) Gauge(string, float64, Tags)     {}
func (nopSink) Histogram(string, float64, Tags) {}
func (nopSink) Timer(string, Tags) func(Tags) time.Duration {
	start := time.Now()
	return func(Tags) time.Duration { return time.Since(start) }
}

// Merge returns a new tag set with the entries of b layered over a.
func Merge(a, b Tags) Tags {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(Tags, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
