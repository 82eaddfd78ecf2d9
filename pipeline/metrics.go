package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

// Metrics holds the run's Prometheus collectors. A run writes them once, as a
// node-exporter textfile, when it finishes.
type Metrics struct {
	Registry *prometheus.Registry

	// Time spent in the final fit of each candidate.
	fitDuration *prometheus.HistogramVec
	// RMSE of every finished cross-validation cycle.
	cycleRMSE *prometheus.HistogramVec
	// Mean CV RMSE per (zone, algorithm).
	meanRMSE *prometheus.GaugeVec
	// Final R² per (zone, algorithm).
	r2 *prometheus.GaugeVec
	// Attempt outcomes by status.
	attempts *prometheus.CounterVec
	// Resource monitor state reached by each attempt (0 normal .. 3 aborted).
	resourceState *prometheus.GaugeVec
	// Zones per resolution stage.
	resolutions *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		fitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "athena_fit_duration_seconds",
			Help:    "Duration of the final fit per candidate",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 21),
		}, []string{"zone", "algorithm"}),
		cycleRMSE: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "athena_cv_cycle_rmse",
			Help:    "RMSE of each cross-validation cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}, []string{"zone", "algorithm"}),
		meanRMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "athena_cv_mean_rmse",
			Help: "Mean cross-validation RMSE per candidate",
		}, []string{"zone", "algorithm"}),
		r2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "athena_r2_score",
			Help: "R² of the final fit per candidate",
		}, []string{"zone", "algorithm"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "athena_candidate_attempts_total",
			Help: "Candidate attempts by outcome",
		}, []string{"zone", "status"}),
		resourceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "athena_resource_state",
			Help: "Resource monitor state at the end of each attempt",
		}, []string{"zone", "algorithm"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "athena_zone_resolutions_total",
			Help: "Zones resolved per fallback stage",
		}, []string{"stage"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "athena_run_duration_seconds",
			Help:    "Duration of a complete run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}),
	}
	m.Registry.MustRegister(
		m.fitDuration,
		m.cycleRMSE,
		m.meanRMSE,
		m.r2,
		m.attempts,
		m.resourceState,
		m.resolutions,
		m.runDuration,
	)
	return m
}

// WriteTextfile writes every metric in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
