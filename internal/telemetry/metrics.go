package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mission outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

// Metrics are the Prometheus collectors for missions. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	missions      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	memoryFacts   *prometheus.CounterVec
	inFlight      prometheus.Gauge
}

// NewMetrics registers the mission collectors (plus Go and process collectors)
// on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		missions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchpilot",
			Name:      "missions_total",
			Help:      "Research missions finished, by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "researchpilot",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each mission stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		memoryFacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "researchpilot",
			Name:      "memory_facts_total",
			Help:      "Facts written to retrieval memory, by backend.",
		}, []string{"backend"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "researchpilot",
			Name:      "missions_in_flight",
			Help:      "Missions currently running.",
		}),
	}
	reg.MustRegister(
		m.missions, m.stageDuration, m.memoryFacts, m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) MissionStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) MissionFinished(outcome string) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.missions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) FactAdded(backend string) {
	if m == nil {
		return
	}
	m.memoryFacts.WithLabelValues(backend).Inc()
}
