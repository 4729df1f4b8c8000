package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/config"
)

// DatasetLoader loads the dataset and reports its size.
type DatasetLoader func(ctx context.Context) (int, error)

// Checker periodically loads the dataset and evaluates alerts in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	metrics   *Metrics
	load      DatasetLoader
	cfg       config.MonitoringConfig
}

// NewChecker creates a background checker.
func NewChecker(metrics *Metrics, alerter *Alerter, load DatasetLoader, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: NewCollector(metrics.Gatherer()),
		alerter:   alerter,
		metrics:   metrics,
		load:      load,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting dataset checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("dataset checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check runs one dataset load and alert evaluation. It returns the alerts raised.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) []Alert {
	n, loadErr := c.load(ctx)
	c.metrics.ObserveDataset(n, loadErr)
	if loadErr != nil {
		log.Warn("monitoring: dataset load failed", zap.Error(loadErr))
	}

	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap, loadErr)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
