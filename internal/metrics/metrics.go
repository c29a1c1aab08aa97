// Package metrics exposes the daemon's Prometheus series:
//
//	tradewatch_inference_runs_total{outcome}     finished runs (complete|parse_error|error|timeout)
//	tradewatch_inference_skips_total{reason}     gated no-ops (cooldown, already_running, ...)
//	tradewatch_inference_duration_seconds        engine wall time per run
//	tradewatch_setup_transitions_total{status}   setup status changes by target status
//	tradewatch_setups_active                     setups held by the registry
//	tradewatch_last_price                        last polled price
//
// Series live on a private registry served at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradewatch/internal/tradesetup"
)

type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	skips       *prometheus.CounterVec
	duration    prometheus.Histogram
	transitions *prometheus.CounterVec
	active      prometheus.Gauge
	lastPrice   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradewatch_inference_runs_total",
				Help: "Finished inference runs by result",
			},
			[]string{"outcome"},
		),
		skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradewatch_inference_skips_total",
				Help: "Inference requests that did not start, by gate",
			},
			[]string{"reason"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradewatch_inference_duration_seconds",
				Help:    "Wall time of inference engine calls",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradewatch_setup_transitions_total",
				Help: "Trade setup status transitions by target status",
			},
			[]string{"status"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradewatch_setups_active",
				Help: "Trade setups currently held in memory",
			},
		),
		lastPrice: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradewatch_last_price",
				Help: "Last polled instrument price",
			},
		),
	}
	m.registry.MustRegister(
		m.runs, m.skips, m.duration, m.transitions, m.active, m.lastPrice,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InferenceSkipped implements inference.Observer.
func (m *Metrics) InferenceSkipped(reason string) {
	m.skips.WithLabelValues(reason).Inc()
}

// InferenceFinished implements inference.Observer.
func (m *Metrics) InferenceFinished(outcome string, seconds float64) {
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(seconds)
}

// ObserveTransitions matches tradesetup.TransitionListener.
func (m *Metrics) ObserveTransitions(ts []tradesetup.Transition) {
	for _, tr := range ts {
		m.transitions.WithLabelValues(string(tr.To)).Inc()
	}
}

func (m *Metrics) SetActiveSetups(n int) { m.active.Set(float64(n)) }

func (m *Metrics) SetLastPrice(p float64) { m.lastPrice.Set(p) }
