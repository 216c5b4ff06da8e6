// Package metrics exposes Prometheus instruments for statement computation.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "opcost_"

// Computation modes.
const (
	ModePreview  = "preview"
	ModeFinalize = "finalize"
	ModeLive     = "live"
)

// Computation results.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds the statement instruments.
type Metrics struct {
	computeTotal    *prometheus.CounterVec
	computeLatency  *prometheus.HistogramVec
	problemsTotal   *prometheus.CounterVec
	warningsTotal   *prometheus.CounterVec
	batchInProgress prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the instruments registered on the default registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New creates and registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		computeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_compute_total",
				Help: "Total statement computations by mode and result",
			},
			[]string{"mode", "result"},
		),
		computeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_compute_seconds",
				Help:    "Statement computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		problemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "validation_problems_total",
				Help: "Blocking validation problems by code",
			},
			[]string{"code"},
		),
		warningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_warnings_total",
				Help: "Statement warnings by code",
			},
			[]string{"code"},
		),
		batchInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "batch_buildings_in_progress",
				Help: "Buildings currently being finalized by a batch run",
			},
		),
	}
	reg.MustRegister(m.computeTotal, m.computeLatency, m.problemsTotal, m.warningsTotal, m.batchInProgress)
	return m
}

// ObserveCompute records one computation.
func (m *Metrics) ObserveCompute(mode, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.computeTotal.WithLabelValues(mode, result).Inc()
	m.computeLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveProblems counts blocking problems by code.
func (m *Metrics) ObserveProblems(codes []string) {
	if m == nil {
		return
	}
	for _, c := range codes {
		m.problemsTotal.WithLabelValues(c).Inc()
	}
}

// ObserveWarnings counts statement warnings by code.
func (m *Metrics) ObserveWarnings(codes []string) {
	if m == nil {
		return
	}
	for _, c := range codes {
		m.warningsTotal.WithLabelValues(c).Inc()
	}
}

// BatchStarted and BatchFinished track buildings in flight.
func (m *Metrics) BatchStarted() {
	if m != nil {
		m.batchInProgress.Inc()
	}
}

func (m *Metrics) BatchFinished() {
	if m != nil {
		m.batchInProgress.Dec()
	}
}
