// Package metrics holds the Prometheus instruments of the analysis service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Registry holds all SPC service metrics on a private Prometheus registry
type Registry struct {
	registry *prometheus.Registry

	SolveDuration  *prometheus.HistogramVec
	Solves         *prometheus.CounterVec
	Segments       prometheus.Histogram
	Outliers       prometheus.Counter
	RowsStaged     *prometheus.CounterVec
	ActiveAnalyses prometheus.Gauge
}

// NewRegistry creates the metrics and registers them with Go and process collectors
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		SolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spc_solve_duration_seconds",
				Help:    "Duration of one segmented-trend solve in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"time_frame"},
		),

		Solves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spc_solves_total",
				Help: "Total number of solves by outcome",
			},
			[]string{"outcome"},
		),

		Segments: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spc_segments_per_solve",
				Help:    "Number of segments found per successful solve",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
		),

		Outliers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spc_outliers_total",
				Help: "Total number of out-of-control points flagged",
			},
		),

		RowsStaged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spc_rows_staged_total",
				Help: "Total number of observations written to staging by dataset",
			},
			[]string{"dataset"},
		),

		ActiveAnalyses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "spc_active_analyses",
				Help: "Number of analyses currently being solved",
			},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SolveDuration,
		r.Solves,
		r.Segments,
		r.Outliers,
		r.RowsStaged,
		r.ActiveAnalyses,
	)
	return r
}

// ObserveSolve records one solve attempt
func (r *Registry) ObserveSolve(timeFrame string, elapsed time.Duration, segments, outliers int, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.Solves.WithLabelValues(OutcomeError).Inc()
		return
	}
	r.Solves.WithLabelValues(OutcomeOK).Inc()
	r.SolveDuration.WithLabelValues(timeFrame).Observe(elapsed.Seconds())
	r.Segments.Observe(float64(segments))
	r.Outliers.Add(float64(outliers))
}

// ObserveStaged records observations written for a dataset
func (r *Registry) ObserveStaged(dataset string, rows int) {
	if r == nil {
		return
	}
	r.RowsStaged.WithLabelValues(dataset).Add(float64(rows))
}

// Track increments the active gauge and returns the matching decrement
func (r *Registry) Track() func() {
	if r == nil {
		return func() {}
	}
	r.ActiveAnalyses.Inc()
	return r.ActiveAnalyses.Dec
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
