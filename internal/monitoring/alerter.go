package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertQueryFailureRate   AlertType = "query_failure_rate"
	AlertDatasetUnavailable AlertType = "dataset_unavailable"
	AlertDatasetEmpty       AlertType = "dataset_empty"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot and the latest dataset load against the
// thresholds. loadErr is the error of the most recent dataset load, if any.
func (a *Alerter) Evaluate(snap *MetricsSnapshot, loadErr error) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if loadErr != nil {
		alerts = append(alerts, Alert{
			Type:     AlertDatasetUnavailable,
			Severity: "critical",
			Message:  fmt.Sprintf("Dataset could not be loaded: %v", loadErr),
			Details: map[string]any{
				"load_failures": snap.DatasetLoadFailures,
			},
			Timestamp: now,
		})
	} else if snap.DatasetRecords == 0 {
		alerts = append(alerts, Alert{
			Type:      AlertDatasetEmpty,
			Severity:  "high",
			Message:   "Dataset loaded with zero records",
			Timestamp: now,
		})
	}

	minQueries := a.cfg.MinQueries
	if minQueries <= 0 {
		minQueries = 1
	}
	if snap.QueriesTotal >= minQueries && a.cfg.FailureRateThreshold > 0 &&
		snap.QueryFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertQueryFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Query failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d total)",
				snap.QueryFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.QueriesFailed, snap.QueriesTotal,
			),
			Details: map[string]any{
				"failure_rate": snap.QueryFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.QueriesFailed,
				"total":        snap.QueriesTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
