// Package metrics wraps a private Prometheus registry tracking build
// outcomes (spec_full component O). None of these instruments affect
// build semantics; the scheduler's correctness never depends on
// metrics being read.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles four instruments. The scheduler records into
// Resolutions only; nothing in this module updates CommandDuration,
// CacheLookups or InFlightWorkers, so they stay at zero.
type Registry struct {
	reg *prometheus.Registry

	Resolutions      *prometheus.CounterVec
	CommandDuration  prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	InFlightWorkers  prometheus.Gauge
}

// New builds a Registry with all instruments registered and zeroed.
func New() *Registry {
	reg := prometheus.NewRegistry()

	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ruler_resolutions_total",
		Help: "Count of target resolutions by outcome kind.",
	}, []string{"kind"})

	commandDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ruler_command_duration_seconds",
		Help:    "Duration of rule command executions.",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ruler_cache_lookups_total",
		Help: "Count of local cache lookups by hit/miss.",
	}, []string{"result"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ruler_workers_in_flight",
		Help: "Number of worker goroutines currently running.",
	})

	reg.MustRegister(resolutions, commandDuration, cacheLookups, inFlight)

	return &Registry{
		reg:             reg,
		Resolutions:     resolutions,
		CommandDuration: commandDuration,
		CacheLookups:    cacheLookups,
		InFlightWorkers: inFlight,
	}
}

// RecordResolution increments the counter for one resolution outcome
// kind (e.g. "already_correct", "recovered", "downloaded",
// "needs_rebuild").
func (r *Registry) RecordResolution(kind string) {
	r.Resolutions.WithLabelValues(kind).Inc()
}

// RecordCacheLookup increments the cache hit/miss counter.
func (r *Registry) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

// Handler returns the /metrics HTTP handler the mirror server mounts.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
