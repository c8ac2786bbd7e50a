package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkinbio"

// Render kinds reported by RecordRender.
const (
	RenderPublic  = "public"
	RenderPreview = "preview"
)

// Recorder receives service level measurements.
type Recorder interface {
	RecordRender(kind string, elapsed time.Duration, err error)
	RecordSave(err error)
	RecordCache(hit bool)
}

// NopRecorder discards every measurement.
type NopRecorder struct{}

func (NopRecorder) RecordRender(string, time.Duration, error) {}
func (NopRecorder) RecordSave(error)                          {}
func (NopRecorder) RecordCache(bool)                          {}

// Registry owns the prometheus collectors exposed on /metrics.
type Registry struct {
	registry       *prometheus.Registry
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	saves          *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// NewRegistry builds a registry with Go runtime, process and service collectors.
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		registry: registry,
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Page renders by kind and outcome.",
		}, []string{"kind", "outcome"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering pages.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"kind"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Settings saves by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_cache_lookups_total",
			Help:      "Public page cache lookups by result.",
		}, []string{"result"}),
	}
	registry.MustRegister(r.renders, r.renderDuration, r.saves, r.cacheLookups)
	return r
}

// RecordRender counts one render and observes its duration.
func (r *Registry) RecordRender(kind string, elapsed time.Duration, err error) {
	r.renders.WithLabelValues(kind, outcome(err)).Inc()
	r.renderDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordSave counts one save attempt.
func (r *Registry) RecordSave(err error) {
	r.saves.WithLabelValues(outcome(err)).Inc()
}

// RecordCache counts one public page cache lookup.
func (r *Registry) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Gatherer returns the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
