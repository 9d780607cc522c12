package core

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mc.service/api"
)

// Metrics is safe to use as nil, every recorder checks
type Metrics struct {
	forecasts        *prometheus.CounterVec
	forecastDuration prometheus.Histogram
	simulatedPaths   prometheus.Counter
	syncs            *prometheus.CounterVec
	syncedRows       prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mc",
			Name:      "forecasts_total",
			Help:      "Forecast runs by outcome.",
		}, []string{"status"}),
		forecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mc",
			Name:      "forecast_duration_seconds",
			Help:      "Wall time of a forecast run, history load included.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		simulatedPaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mc",
			Name:      "simulated_paths_total",
			Help:      "Price paths generated.",
		}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mc",
			Name:      "history_syncs_total",
			Help:      "Price history syncs by result.",
		}, []string{"result"}),
		syncedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mc",
			Name:      "history_rows_inserted_total",
			Help:      "Price observations written by syncs.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.forecasts, m.forecastDuration, m.simulatedPaths, m.syncs, m.syncedRows)
	}
	return m
}

func (m *Metrics) ObserveForecast(err error, paths int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.forecasts.WithLabelValues(errorLabel(err)).Inc()
	m.forecastDuration.Observe(elapsed.Seconds())
	if err == nil {
		m.simulatedPaths.Add(float64(paths))
	}
}

func (m *Metrics) ObserveSync(err error, skipped bool, inserted int64) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.syncs.WithLabelValues(errorLabel(err)).Inc()
	case skipped:
		m.syncs.WithLabelValues("skipped").Inc()
	default:
		m.syncs.WithLabelValues("success").Inc()
		m.syncedRows.Add(float64(inserted))
	}
}

// errorLabel keeps label cardinality to the error taxonomy
func errorLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrStatisticsUndefined):
		return "invalid"
	case errors.Is(err, api.ErrSymbolNotFound):
		return "not_found"
	case errors.Is(err, api.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, api.ErrProviderUnavailable):
		return "provider_unavailable"
	default:
		return "error"
	}
}
