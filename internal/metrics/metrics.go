// Package metrics exposes Prometheus instrumentation for scene loading.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Components used as the "component" label on anomaly counts.
const (
	ComponentScene = "scene"
	ComponentPhase = "phase"
)

// Metrics holds the collectors registered for one loader. Each instance owns
// its registry so tests and multiple loaders do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	ViewsTotal      *prometheus.CounterVec
	AnomaliesTotal  *prometheus.CounterVec
	LoadsTotal      *prometheus.CounterVec
	FlattenDuration prometheus.Histogram
	BuildDuration   prometheus.Histogram
	Phases          prometheus.Gauge
}

// New registers the collectors under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ViewsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_views_total",
			Help:      "Render views emitted by flattening, by model",
		}, []string{"model"}),

		// Labels: component ("scene", "phase"), kind (anomaly name)
		AnomaliesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Recoverable anomalies by component and kind",
		}, []string{"component", "kind"}),

		LoadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Snapshot loads by result",
		}, []string{"result"}),

		FlattenDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flatten_duration_seconds",
			Help:      "Scene flattening duration",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}),

		BuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_build_duration_seconds",
			Help:      "Phase index build duration",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 5},
		}),

		Phases: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phases",
			Help:      "Phases in the current snapshot",
		}),
	}
}

// ObserveFlatten records one flatten pass.
func (m *Metrics) ObserveFlatten(model string, views int, d time.Duration) {
	if m == nil {
		return
	}
	m.ViewsTotal.WithLabelValues(model).Add(float64(views))
	m.FlattenDuration.Observe(d.Seconds())
}

// ObserveBuild records one phase index build.
func (m *Metrics) ObserveBuild(phases int, d time.Duration) {
	if m == nil {
		return
	}
	m.Phases.Set(float64(phases))
	m.BuildDuration.Observe(d.Seconds())
}

// CountAnomaly increments the anomaly counter.
func (m *Metrics) CountAnomaly(component, kind string) {
	if m == nil {
		return
	}
	m.AnomaliesTotal.WithLabelValues(component, kind).Inc()
}

// CountLoad records a load outcome, "ok" or "error".
func (m *Metrics) CountLoad(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LoadsTotal.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
