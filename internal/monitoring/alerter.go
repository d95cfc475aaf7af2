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

	"github.com/sells-group/mars-cli/internal/config"
	"github.com/sells-group/mars-cli/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertStepFailureRate AlertType = "step_failure_rate"
	AlertStaleData       AlertType = "stale_data"
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

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Step alerts come out in scrape order.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	minSamples := a.cfg.MinSamples
	if minSamples < 1 {
		minSamples = 1
	}

	for _, step := range model.AllSteps() {
		m, ok := snap.Steps[step]
		if !ok || m.Total < minSamples || m.FailRate <= a.cfg.FailureRateThreshold {
			continue
		}
		// Mostly structural misses points at a site layout change rather
		// than a flaky network.
		severity := "medium"
		if m.NotFound*2 > m.Failed() {
			severity = "high"
		}
		alerts = append(alerts, Alert{
			Type:     AlertStepFailureRate,
			Severity: severity,
			Message: fmt.Sprintf(
				"Step %s failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d in last %dh)",
				step, m.FailRate*100, a.cfg.FailureRateThreshold*100,
				m.Failed(), m.Total, snap.LookbackHours,
			),
			Details: map[string]any{
				"step":            string(step),
				"failure_rate":    m.FailRate,
				"threshold":       a.cfg.FailureRateThreshold,
				"not_found":       m.NotFound,
				"transport_error": m.Transport,
				"total":           m.Total,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleAfterHours > 0 {
		limit := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		age, ok := snap.Age()
		switch {
		case !ok:
			alerts = append(alerts, Alert{
				Type:      AlertStaleData,
				Severity:  "medium",
				Message:   "No snapshots have been saved yet",
				Timestamp: now,
			})
		case age > limit:
			alerts = append(alerts, Alert{
				Type:     AlertStaleData,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Latest snapshot is %s old, exceeds %dh",
					age.Truncate(time.Minute), a.cfg.StaleAfterHours,
				),
				Details: map[string]any{
					"latest_at":   snap.LatestAt,
					"stale_hours": a.cfg.StaleAfterHours,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL and returns the
// ones that were accepted. Without a webhook nothing is sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) []Alert {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return nil
	}

	var delivered []Alert
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
		delivered = append(delivered, alert)
	}
	return delivered
}

// HasWebhook reports whether alerts have somewhere to go.
func (a *Alerter) HasWebhook() bool { return a.cfg.WebhookURL != "" }

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
