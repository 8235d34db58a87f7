package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tradewatch/internal/config"
	"github.com/sells-group/tradewatch/internal/runlog"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailure        AlertType = "run_failure"
	AlertDocumentErrorRate AlertType = "document_error_rate"
	AlertPriceErrors       AlertType = "price_errors"
)

// minDocumentsForRate is the sample size below which the document error
// rate is not evaluated.
const minDocumentsForRate = 5

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
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	kinds := make([]string, 0, len(snap.Runs))
	for k := range snap.Runs {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		rc := snap.Runs[kind]
		if rc.Failed == 0 {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertRunFailure,
			Severity: "high",
			Message: fmt.Sprintf("%d %s run(s) failed in last %dh",
				rc.Failed, kind, snap.LookbackHours),
			Details: map[string]any{
				"kind":   kind,
				"failed": rc.Failed,
				"total":  rc.Total,
			},
			Timestamp: now,
		})
	}

	if snap.DocumentsTotal >= minDocumentsForRate && snap.DocumentErrorRate > a.cfg.ErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDocumentErrorRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Document error rate %.1f%% exceeds threshold %.1f%% (%d errored / %d ingested in last %dh)",
				snap.DocumentErrorRate*100, a.cfg.ErrorRateThreshold*100,
				snap.DocumentErrors, snap.DocumentsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"error_rate": snap.DocumentErrorRate,
				"threshold":  a.cfg.ErrorRateThreshold,
				"errored":    snap.DocumentErrors,
				"total":      snap.DocumentsTotal,
			},
			Timestamp: now,
		})
	}

	if snap.PriceRunErrors > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertPriceErrors,
			Severity: "medium",
			Message: fmt.Sprintf("%d symbol refresh(es) failed in last %dh; %d symbol(s) currently errored",
				snap.PriceRunErrors, snap.LookbackHours, snap.PriceSymbolErrors),
			Details: map[string]any{
				"run_errors":    snap.PriceRunErrors,
				"symbol_errors": snap.PriceSymbolErrors,
				"price_runs":    snap.Runs[runlog.KindPrices].Total,
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
