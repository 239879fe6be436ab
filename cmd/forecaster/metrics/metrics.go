// Package metrics provides Prometheus instrumentation for the forecaster.
//
// Metrics exposed (all labelled with the series name):
//   - epicast_source_collect_seconds: time spent reading the incidence source
//   - epicast_fit_seconds:            time spent sampling the posterior
//   - epicast_predictive_seconds:     time spent on bands and storage after sampling
//   - epicast_divergences:            divergent transitions of the last run
//   - epicast_accept_rate:            mean acceptance rate of the last run
//   - epicast_step_size:              adapted NUTS step size of the last run
//   - epicast_forecast_age_seconds:   age of the latest stored forecast
//   - epicast_errors_total:           errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the forecaster.
type Metrics struct {
	SourceCollectSeconds prometheus.Histogram
	FitSeconds           prometheus.Histogram
	PredictiveSeconds    prometheus.Histogram
	Divergences          prometheus.Gauge
	AcceptRate           prometheus.Gauge
	StepSize             prometheus.Gauge
	ForecastAgeSeconds   prometheus.Gauge
	ErrorsTotal          *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default registry, which is what /metrics serves.
func New(series string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"series": series}

	return &Metrics{
		SourceCollectSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "epicast_source_collect_seconds",
			Help:        "Time spent collecting the incidence series",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		FitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "epicast_fit_seconds",
			Help:        "Time spent fitting the forecast model",
			ConstLabels: labels,
			// fits run from seconds to hours
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		PredictiveSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "epicast_predictive_seconds",
			Help:        "Time spent assembling and storing the forecast",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		Divergences: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "epicast_divergences",
			Help:        "Divergent transitions in the last run",
			ConstLabels: labels,
		}),
		AcceptRate: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "epicast_accept_rate",
			Help:        "Mean acceptance rate of the last run",
			ConstLabels: labels,
		}),
		StepSize: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "epicast_step_size",
			Help:        "Adapted step size of the last run",
			ConstLabels: labels,
		}),
		ForecastAgeSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "epicast_forecast_age_seconds",
			Help:        "Age of the latest forecast in seconds",
			ConstLabels: labels,
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "epicast_errors_total",
			Help:        "Total number of errors by component and reason",
			ConstLabels: labels,
		}, []string{"component", "reason"}),
	}
}

// RecordCollect records the time spent collecting the series.
func (m *Metrics) RecordCollect(seconds float64) {
	m.SourceCollectSeconds.Observe(seconds)
}

// RecordFit records the fit duration and the sampler diagnostics.
func (m *Metrics) RecordFit(seconds float64, divergences int, acceptRate, stepSize float64) {
	m.FitSeconds.Observe(seconds)
	m.Divergences.Set(float64(divergences))
	m.AcceptRate.Set(acceptRate)
	m.StepSize.Set(stepSize)
}

// RecordPredictive records the time spent after sampling.
func (m *Metrics) RecordPredictive(seconds float64) {
	m.PredictiveSeconds.Observe(seconds)
}

// SetForecastAge sets the age of the latest forecast.
func (m *Metrics) SetForecastAge(seconds float64) {
	m.ForecastAgeSeconds.Set(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
