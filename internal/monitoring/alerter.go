// Package monitoring raises data-quality alerts about build runs.
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

	"github.com/sells-group/hospmon/internal/config"
	"github.com/sells-group/hospmon/internal/store"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailed   AlertType = "run_failed"
	AlertEmptyTable  AlertType = "empty_table"
	AlertTotalDrop   AlertType = "total_drop"
	AlertStaleOutput AlertType = "stale_output"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a RunSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *RunSnapshot) []Alert {
	var alerts []Alert
	now := a.now()

	if run := snap.Run; run != nil {
		switch run.Status {
		case store.RunStatusFailed:
			alerts = append(alerts, Alert{
				Type:     AlertRunFailed,
				Severity: "high",
				Message: fmt.Sprintf("Build run %s failed (%d consecutive failures): %s",
					run.ID, snap.ConsecutiveFailures, run.Error),
				Details: map[string]any{
					"run_id":               run.ID,
					"consecutive_failures": snap.ConsecutiveFailures,
				},
				Timestamp: now,
			})

		case store.RunStatusComplete:
			if run.RowCount == 0 {
				alerts = append(alerts, Alert{
					Type:      AlertEmptyTable,
					Severity:  "high",
					Message:   fmt.Sprintf("Build run %s published an empty table", run.ID),
					Details:   map[string]any{"run_id": run.ID, "artifact": run.ArtifactPath},
					Timestamp: now,
				})
			}
			if prev := snap.Previous; prev != nil {
				if drop := prev.NewConfirm - run.NewConfirm; drop > a.cfg.MaxTotalDrop {
					alerts = append(alerts, Alert{
						Type:     AlertTotalDrop,
						Severity: "medium",
						Message: fmt.Sprintf(
							"Confirmed total fell by %d (from %d to %d), tolerance %d",
							drop, prev.NewConfirm, run.NewConfirm, a.cfg.MaxTotalDrop,
						),
						Details: map[string]any{
							"run_id":      run.ID,
							"previous_id": prev.ID,
							"previous":    prev.NewConfirm,
							"current":     run.NewConfirm,
							"tolerance":   a.cfg.MaxTotalDrop,
						},
						Timestamp: now,
					})
				}
			}
		}
		return alerts
	}

	if a.cfg.MaxStaleHours > 0 {
		limit := time.Duration(a.cfg.MaxStaleHours) * time.Hour
		switch last := snap.LastSuccess; {
		case last == nil:
			alerts = append(alerts, Alert{
				Type:      AlertStaleOutput,
				Severity:  "high",
				Message:   "No successful build run recorded",
				Timestamp: now,
			})
		case now.Sub(last.StartedAt) > limit:
			age := now.Sub(last.StartedAt).Truncate(time.Minute)
			alerts = append(alerts, Alert{
				Type:     AlertStaleOutput,
				Severity: "high",
				Message: fmt.Sprintf("Last successful build %s is %s old (limit %dh)",
					last.ID, age, a.cfg.MaxStaleHours),
				Details: map[string]any{
					"run_id":               last.ID,
					"age_hours":            age.Hours(),
					"consecutive_failures": snap.ConsecutiveFailures,
				},
				Timestamp: now,
			})
		}
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

// sendWebhook posts a single alert to the webhook URL.
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
