// Package monitoring exposes lookup metrics to Prometheus, evaluates them for
// alerts, and configures OpenTelemetry tracing.
package monitoring

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Metric names.
const (
	MetricQueriesTotal        = "zipcode_queries_total"
	MetricQueryDuration       = "zipcode_query_duration_seconds"
	MetricDatasetRecords      = "zipcode_dataset_records"
	MetricDatasetLoadFailures = "zipcode_dataset_load_failures_total"
)

// Query outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the Prometheus collectors for lookups.
type Metrics struct {
	gatherer prometheus.Gatherer

	QueriesTotal        *prometheus.CounterVec
	QueryDuration       *prometheus.HistogramVec
	DatasetRecords      prometheus.Gauge
	DatasetLoadFailures prometheus.Counter
}

// NewMetrics registers the lookup metrics on reg. A nil reg uses a fresh
// registry. Collectors already registered under the same name are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	queries, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricQueriesTotal,
		Help: "Lookups handled, by query mode and outcome.",
	}, []string{"mode", "status"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricQueryDuration,
		Help:    "Lookup latency by query mode, including dataset access.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}, []string{"mode"}))
	if err != nil {
		return nil, err
	}

	records, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricDatasetRecords,
		Help: "Records in the most recently loaded dataset.",
	}))
	if err != nil {
		return nil, err
	}

	failures, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricDatasetLoadFailures,
		Help: "Dataset loads that failed.",
	}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:            gatherer,
		QueriesTotal:        queries,
		QueryDuration:       duration,
		DatasetRecords:      records,
		DatasetLoadFailures: failures,
	}, nil
}

// register adds c to reg or returns the collector already registered in its place.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, eris.Wrap(err, "monitoring: register collector")
	}
	return c, nil
}

// ObserveQuery records one lookup. A nil receiver is a no-op.
func (m *Metrics) ObserveQuery(mode string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := StatusOK
	if !ok {
		status = StatusError
	}
	m.QueriesTotal.WithLabelValues(mode, status).Inc()
	m.QueryDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveDataset records the outcome of a dataset load. A nil receiver is a no-op.
func (m *Metrics) ObserveDataset(records int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DatasetLoadFailures.Inc()
		return
	}
	m.DatasetRecords.Set(float64(records))
}

// Gatherer returns the gatherer backing the metrics.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
