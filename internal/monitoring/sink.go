package monitoring

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/charlesng35/skybook/pkg/metrics"
)

type metricKind int

const (
	kindCounter metricKind = iota
	kindGauge
	kindHistogram
)

func (k metricKind) String() string {
	switch k {
	case kindCounter:
		return "counter"
	case kindGauge:
		return "gauge"
	default:
		return "histogram"
	}
}

type family struct {
	kind      metricKind
	labels    []string
	counter   *prometheus.CounterVec
	gauge     *prometheus.GaugeVec
	histogram *prometheus.HistogramVec
}

// Sink implements metrics.Sink on Prometheus. Series are created on first use
// with one label per tag key; a later sample for the same name with a
// different tag key set is dropped because Prometheus requires a fixed label
// set per metric.
type Sink struct {
	namespace string
	registry  prometheus.Registerer
	stats     *statStore
	log       *zap.Logger

	mu       sync.Mutex
	families map[string]*family
}

var _ metrics.Sink = (*Sink)(nil)

func newSink(namespace string, registry prometheus.Registerer, stats *statStore, log *zap.Logger) *Sink {
	return &Sink{
		namespace: namespace,
		registry:  registry,
		stats:     stats,
		log:       log,
		families:  make(map[string]*family),
	}
}

func (s *Sink) Increment(name string, tags metrics.Tags) {
	fam := s.family(metricName(name)+"_total", kindCounter, tags)
	if fam == nil {
		return
	}
	fam.counter.With(labelValues(fam.labels, tags)).Inc()
	s.stats.recordCount(name, tags)
}

func (s *Sink) Gauge(name string, value float64, tags metrics.Tags) {
	fam := s.family(metricName(name), kindGauge, tags)
	if fam == nil {
		return
	}
	fam.gauge.With(labelValues(fam.labels, tags)).Set(value)
}

func (s *Sink) Histogram(name string, value float64, tags metrics.Tags) {
	fam := s.family(metricName(name), kindHistogram, tags)
	if fam == nil {
		return
	}
	fam.histogram.With(labelValues(fam.labels, tags)).Observe(value)
	s.stats.recordSample(name, tags, value)
}

// Timer records the elapsed time in seconds under "<name>_duration_seconds".
func (s *Sink) Timer(name string, tags metrics.Tags) func(extra metrics.Tags) time.Duration {
	start := time.Now()
	return func(extra metrics.Tags) time.Duration {
		elapsed := time.Since(start)
		s.Histogram(name+"_duration_seconds", elapsed.Seconds(), metrics.Merge(tags, extra))
		return elapsed
	}
}

func (s *Sink) family(name string, kind metricKind, tags metrics.Tags) *family {
	labels := labelNames(tags)

	s.mu.Lock()
	defer s.mu.Unlock()

	if fam, ok := s.families[name]; ok {
		if fam.kind != kind || !equalLabels(fam.labels, labels) {
			s.log.Debug("metric sample dropped",
				zap.String("metric", name),
				zap.String("kind", kind.String()),
				zap.Strings("labels", labels),
				zap.Strings("registered_labels", fam.labels),
			)
			return nil
		}
		return fam
	}

	fam := &family{kind: kind, labels: labels}
	var collector prometheus.Collector
	switch kind {
	case kindCounter:
		fam.counter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      "Counter " + name,
		}, labels)
		collector = fam.counter
	case kindGauge:
		fam.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      "Gauge " + name,
		}, labels)
		collector = fam.gauge
	default:
		fam.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      "Histogram " + name,
			Buckets:   prometheus.DefBuckets,
		}, labels)
		collector = fam.histogram
	}

	if err := s.registry.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			s.log.Warn("metric registration failed", zap.String("metric", name), zap.Error(err))
			return nil
		}
		switch existing := already.ExistingCollector.(type) {
		case *prometheus.CounterVec:
			fam.counter = existing
		case *prometheus.GaugeVec:
			fam.gauge = existing
		case *prometheus.HistogramVec:
			fam.histogram = existing
		}
	}
	s.families[name] = fam
	return fam
}

func labelNames(tags metrics.Tags) []string {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags))
	for key := range tags {
		names = append(names, metricName(key))
	}
	sort.Strings(names)
	return names
}

func labelValues(labels []string, tags metrics.Tags) prometheus.Labels {
	values := make(prometheus.Labels, len(labels))
	for _, label := range labels {
		values[label] = ""
	}
	for key, value := range tags {
		values[metricName(key)] = value
	}
	return values
}

func equalLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// metricName maps an arbitrary name onto the Prometheus name alphabet.
func metricName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "unnamed"
	}
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
