package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/mars-cli/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker periodically collects scrape metrics and sends any alerts that
// were not already active on the previous pass.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	// active holds the keys of alerts already delivered and still raised.
	active map[string]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		active:    map[string]bool{},
	}
}

// Run checks once immediately and then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting scrape health checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.check(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("scrape health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

// check runs one pass and returns the alerts that were not active before it.
func (c *Checker) check(ctx context.Context, log *zap.Logger) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(snap)
	next := make(map[string]bool, len(alerts))
	var fresh []Alert
	for _, a := range alerts {
		k := alertKey(a)
		if c.active[k] {
			next[k] = true
			continue
		}
		fresh = append(fresh, a)
	}

	if len(fresh) == 0 {
		c.active = next
		log.Debug("monitoring: no new alerts", zap.Int("active", len(alerts)))
		return nil
	}

	// Only delivered alerts become active; failed ones are retried next pass.
	// With no webhook configured the log line is the only delivery.
	delivered := fresh
	if c.alerter.HasWebhook() {
		delivered = c.alerter.SendAlerts(ctx, fresh)
	}
	for _, a := range delivered {
		next[alertKey(a)] = true
	}
	c.active = next

	log.Info("monitoring: alert check complete",
		zap.Int("snapshots", snap.Snapshots),
		zap.Int("alerts_new", len(fresh)),
		zap.Int("alerts_delivered", len(delivered)),
	)
	return fresh
}

func alertKey(a Alert) string {
	if step, ok := a.Details["step"].(string); ok {
		return string(a.Type) + ":" + step
	}
	return string(a.Type)
}
