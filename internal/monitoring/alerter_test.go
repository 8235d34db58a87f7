package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tradewatch/internal/config"
	"github.com/sells-group/tradewatch/internal/runlog"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{ErrorRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		Runs:              map[string]RunCounts{runlog.KindIngest: {Total: 4, Complete: 4}},
		DocumentsTotal:    100,
		DocumentErrors:    5,
		DocumentErrorRate: 0.05,
		LookbackHours:     24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_RunFailure(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{ErrorRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		Runs: map[string]RunCounts{
			runlog.KindPrices: {Total: 2, Failed: 1, Complete: 1},
			runlog.KindIngest: {Total: 3, Failed: 2, Complete: 1},
		},
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertRunFailure, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "2 ingest run(s)")
	assert.Contains(t, alerts[1].Message, "1 prices run(s)")
}

func TestAlerter_Evaluate_DocumentErrorRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{ErrorRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		DocumentsTotal:    20,
		DocumentErrors:    8,
		DocumentErrorRate: 0.4,
		LookbackHours:     24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDocumentErrorRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_MinimumDocumentsRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{ErrorRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		DocumentsTotal:    3,
		DocumentErrors:    2,
		DocumentErrorRate: 0.666,
		LookbackHours:     24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_PriceErrors(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{ErrorRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		Runs:              map[string]RunCounts{runlog.KindPrices: {Total: 1, Complete: 1}},
		PriceRunErrors:    4,
		PriceSymbolErrors: 2,
		LookbackHours:     6,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPriceErrors, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "4 symbol refresh(es)")
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertRunFailure, Severity: "high", Message: "test alert 1"},
		{Type: AlertPriceErrors, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailure, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailure, Message: "test"}})
	assert.Equal(t, 0, sent)
}
