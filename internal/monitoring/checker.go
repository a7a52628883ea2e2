package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cleardeed/diligence-cli/internal/config"
)

// defaultCheckInterval applies when monitoring.check_interval_secs is unset.
const defaultCheckInterval = 5 * time.Minute

// Checker sweeps job health on a fixed interval and routes threshold
// breaches to the alerter.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
}

// NewChecker wires a collector and alerter into a periodic sweep.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
	}
}

// Run sweeps once immediately, then on every tick, until ctx ends. An
// operator starting the monitor sees the current state without waiting out
// the first interval.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitor"))
	log.Info("job health checker started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	c.sweep(ctx, log)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("job health checker stopped")
			return
		case <-ticker.C:
			c.sweep(ctx, log)
		}
	}
}

func (c *Checker) sweep(ctx context.Context, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}

	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		log.Error("monitoring: collect metrics", zap.Error(err))
		return
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: job health within thresholds",
			zap.Int("jobs_total", snap.JobsTotal),
			zap.Float64("fail_rate", snap.JobFailRate),
		)
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: sweep complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
