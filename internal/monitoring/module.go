package monitoring

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/charlesng35/skybook/pkg/logger"
	"github.com/charlesng35/skybook/pkg/metrics"
)

const (
	defaultNamespace  = "skybook"
	defaultSampleSize = 1024
)

// Options control monitoring module configuration.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "skybook".
	Namespace               string
	DisableGoCollector      bool
	DisableProcessCollector bool
	// SampleSize bounds the number of recent observations retained per series
	// for percentile summaries.
	SampleSize int
	Logger     *zap.Logger
}

// Module owns the Prometheus registry, the metrics sink handed to the cache and
// rate limiter, the summary state and the health probes.
type Module struct {
	registry *prometheus.Registry
	metrics  *httpCollectors
	stats    *statStore
	health   *HealthManager
	sink     *Sink
}

// NewModule constructs a monitoring module with its own Prometheus registry.
func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	sampleSize := opts.SampleSize
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}
	log := opts.Logger
	if log == nil {
		log = logger.WithModule("monitoring")
	}

	registry := prometheus.NewRegistry()
	if !opts.DisableGoCollector {
		if err := registry.Register(collectors.NewGoCollector()); err != nil {
			return nil, err
		}
	}
	if !opts.DisableProcessCollector {
		if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, err
		}
	}

	fixed := newHTTPCollectors(namespace)
	for _, collector := range fixed.all() {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	stats := newStatStore(sampleSize)
	return &Module{
		registry: registry,
		metrics:  fixed,
		stats:    stats,
		health:   NewHealthManager(),
		sink:     newSink(namespace, registry, stats, log),
	}, nil
}

func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the module's registry in the Prometheus exposition format.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Sink returns the metrics.Sink backed by this module. A nil module yields a
// no-op sink.
func (m *Module) Sink() metrics.Sink {
	if m == nil || m.sink == nil {
		return metrics.Nop()
	}
	return m.sink
}

func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

// Summary returns the percentile and counter summary for this module.
func (m *Module) Summary() Summary {
	if m == nil || m.stats == nil {
		return emptySummary()
	}
	return m.stats.summary()
}

var globalModule atomic.Pointer[Module]

// SetModule configures the process-wide module used by the package-level
// instrumentation helpers.
func SetModule(module *Module) {
	if module == nil {
		return
	}
	globalModule.Store(module)
}

func CurrentModule() *Module {
	return globalModule.Load()
}
