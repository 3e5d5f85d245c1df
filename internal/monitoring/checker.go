package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Checker logs health alerts in the background while the server runs.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
}

// NewChecker creates a background checker. A non-positive interval defaults
// to one minute.
func NewChecker(collector *Collector, alerter *Alerter, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Checker{collector: collector, alerter: alerter, interval: interval}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting health checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx, log)
		}
	}
}

// Check collects one snapshot and logs its alerts.
func (c *Checker) Check(ctx context.Context, log *zap.Logger) []Alert {
	snap := c.collector.Collect(ctx)
	alerts := c.alerter.Evaluate(snap)
	for _, a := range alerts {
		fields := []zap.Field{zap.String("type", string(a.Type)), zap.String("severity", a.Severity)}
		if a.Severity == "low" {
			log.Info(a.Message, fields...)
			continue
		}
		log.Warn(a.Message, fields...)
	}
	if len(alerts) == 0 {
		log.Debug("monitoring: healthy",
			zap.Int("cases", snap.Cases),
			zap.Int("runs", snap.Runs),
		)
	}
	return alerts
}
