package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rotisserie/eris"
)

// MetricsSnapshot holds a point-in-time view of lookup health.
type MetricsSnapshot struct {
	QueriesTotal   int            `json:"queries_total"`
	QueriesFailed  int            `json:"queries_failed"`
	QueryFailRate  float64        `json:"query_fail_rate"`
	QueriesPerMode map[string]int `json:"queries_per_mode"`

	DatasetRecords      int `json:"dataset_records"`
	DatasetLoadFailures int `json:"dataset_load_failures"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector reads a snapshot from a Prometheus gatherer.
type Collector struct {
	gatherer prometheus.Gatherer
}

// NewCollector creates a collector over g.
func NewCollector(g prometheus.Gatherer) *Collector {
	return &Collector{gatherer: g}
}

// Collect gathers the current counters. Counters are cumulative since process
// start.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "monitoring: collect")
	}
	families, err := c.gatherer.Gather()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: gather")
	}

	snap := &MetricsSnapshot{
		QueriesPerMode: make(map[string]int),
		CollectedAt:    time.Now().UTC(),
	}
	for _, mf := range families {
		switch mf.GetName() {
		case MetricQueriesTotal:
			for _, m := range mf.GetMetric() {
				n := int(m.GetCounter().GetValue())
				snap.QueriesTotal += n
				snap.QueriesPerMode[label(m, "mode")] += n
				if label(m, "status") == StatusError {
					snap.QueriesFailed += n
				}
			}
		case MetricDatasetRecords:
			for _, m := range mf.GetMetric() {
				snap.DatasetRecords = int(m.GetGauge().GetValue())
			}
		case MetricDatasetLoadFailures:
			for _, m := range mf.GetMetric() {
				snap.DatasetLoadFailures += int(m.GetCounter().GetValue())
			}
		}
	}
	if snap.QueriesTotal > 0 {
		snap.QueryFailRate = float64(snap.QueriesFailed) / float64(snap.QueriesTotal)
	}
	return snap, nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
