package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hospmon/internal/config"
	"github.com/sells-group/hospmon/internal/store"
)

func fixedAlerter(cfg config.MonitoringConfig, now time.Time) *Alerter {
	a := NewAlerter(cfg)
	a.now = func() time.Time { return now }
	return a
}

func TestAlerter_Evaluate_HealthyRun(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MaxTotalDrop: 0})

	snap := &RunSnapshot{
		Run:      &store.Run{ID: "r2", Status: store.RunStatusComplete, RowCount: 120, NewConfirm: 510},
		Previous: &store.Run{ID: "r1", Status: store.RunStatusComplete, RowCount: 118, NewConfirm: 500},
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_RunFailed(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &RunSnapshot{
		Run:                 &store.Run{ID: "r3", Status: store.RunStatusFailed, Error: "casefeed: empty feed"},
		ConsecutiveFailures: 2,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailed, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "casefeed: empty feed")
	assert.Contains(t, alerts[0].Message, "2 consecutive")
}

func TestAlerter_Evaluate_EmptyTable(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	alerts := a.Evaluate(&RunSnapshot{
		Run: &store.Run{ID: "r1", Status: store.RunStatusComplete, ArtifactPath: "out/x.csv"},
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertEmptyTable, alerts[0].Type)
	assert.Equal(t, "out/x.csv", alerts[0].Details["artifact"])
}

func TestAlerter_Evaluate_TotalDrop(t *testing.T) {
	tests := []struct {
		name      string
		tolerance int64
		current   int64
		wantAlert bool
	}{
		{"increase", 0, 520, false},
		{"unchanged", 0, 500, false},
		{"drop beyond tolerance", 5, 490, true},
		{"drop within tolerance", 10, 490, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAlerter(config.MonitoringConfig{MaxTotalDrop: tt.tolerance})
			snap := &RunSnapshot{
				Run:      &store.Run{ID: "r2", Status: store.RunStatusComplete, RowCount: 10, NewConfirm: tt.current},
				Previous: &store.Run{ID: "r1", Status: store.RunStatusComplete, RowCount: 10, NewConfirm: 500},
			}
			alerts := a.Evaluate(snap)
			if !tt.wantAlert {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, AlertTotalDrop, alerts[0].Type)
			assert.Contains(t, alerts[0].Message, "fell by 10")
		})
	}
}

func TestAlerter_Evaluate_Stale(t *testing.T) {
	now := time.Date(2020, 4, 28, 12, 0, 0, 0, time.UTC)
	a := fixedAlerter(config.MonitoringConfig{MaxStaleHours: 36}, now)

	fresh := &RunSnapshot{LastSuccess: &store.Run{ID: "r1", StartedAt: now.Add(-12 * time.Hour)}}
	assert.Empty(t, a.Evaluate(fresh))

	stale := &RunSnapshot{
		LastSuccess:         &store.Run{ID: "r1", StartedAt: now.Add(-48 * time.Hour)},
		ConsecutiveFailures: 3,
	}
	alerts := a.Evaluate(stale)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleOutput, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "48h0m0s old")

	never := a.Evaluate(&RunSnapshot{})
	require.Len(t, never, 1)
	assert.Contains(t, never[0].Message, "No successful build")
}

func TestAlerter_Evaluate_StaleDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MaxStaleHours: 0})
	assert.Empty(t, a.Evaluate(&RunSnapshot{}))
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
		{Type: AlertRunFailed, Severity: "high", Message: "test alert 1"},
		{Type: AlertTotalDrop, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: ""})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailed, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertEmptyTable, Message: "test"}})
	assert.Equal(t, 0, sent)
}
