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

	"github.com/sells-group/newsfacts/internal/config"
	"github.com/sells-group/newsfacts/internal/resilience"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold:        0.10,
		ArticleFailureRateThreshold: 0.20,
		CostThresholdUSD:            50.0,
		MinEntityF1:                 0.5,
	})

	snap := &MetricsSnapshot{
		RunsTotal:       100,
		RunsComplete:    95,
		RunsFailed:      5,
		RunFailRate:     0.05,
		ExtractArticles: 1000,
		ExtractFailed:   10,
		ArticleFailRate: 0.01,
		CostUSD:         10.0,
		Evaluations:     3,
		LatestEntityF1:  0.82,
		LookbackHours:   24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_RunFailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		RunsTotal:     20,
		RunsComplete:  12,
		RunsFailed:    8,
		RunFailRate:   0.4,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_ArticleFailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{ArticleFailureRateThreshold: 0.10})

	snap := &MetricsSnapshot{
		ExtractArticles: 200,
		ExtractFailed:   50,
		ArticleFailRate: 0.25,
		LookbackHours:   24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertArticleFailureRate, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "50 of 200")
}

func TestAlerter_Evaluate_CostOverrun(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		CostThresholdUSD:     100.0,
	})

	snap := &MetricsSnapshot{
		RunsTotal:     50,
		RunsComplete:  48,
		RunsFailed:    2,
		RunFailRate:   0.04,
		CostUSD:       250.0,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCostOverrun, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "$250.00")
}

func TestAlerter_Evaluate_QualityRegression(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MinEntityF1: 0.7})

	snap := &MetricsSnapshot{
		Evaluations:    4,
		LatestEntityF1: 0.61,
		AvgEntityF1:    0.74,
		LookbackHours:  24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertQualityRegression, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "0.610")
}

func TestAlerter_Evaluate_QualityNeedsEvaluations(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{MinEntityF1: 0.7})

	alerts := a.Evaluate(&MetricsSnapshot{LookbackHours: 24})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold:        0.10,
		ArticleFailureRateThreshold: 0.10,
		CostThresholdUSD:            100.0,
		MinEntityF1:                 0.9,
	})

	snap := &MetricsSnapshot{
		RunsTotal:       20,
		RunsComplete:    10,
		RunsFailed:      10,
		RunFailRate:     0.5,
		ExtractArticles: 10,
		ExtractFailed:   5,
		ArticleFailRate: 0.5,
		CostUSD:         300.0,
		Evaluations:     1,
		LatestEntityF1:  0.5,
		LookbackHours:   24,
	}

	alerts := a.Evaluate(snap)
	assert.Len(t, alerts, 4)

	types := make(map[AlertType]bool)
	for _, a := range alerts {
		types[a.Type] = true
	}
	assert.True(t, types[AlertRunFailureRate])
	assert.True(t, types[AlertArticleFailureRate])
	assert.True(t, types[AlertCostOverrun])
	assert.True(t, types[AlertQualityRegression])
}

func TestAlerter_Evaluate_MinimumRunsRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		CostThresholdUSD:     500.0,
	})

	// Only 3 finished runs, below the minimum for a failure rate alert.
	snap := &MetricsSnapshot{
		RunsTotal:     3,
		RunsComplete:  1,
		RunsFailed:    2,
		RunFailRate:   0.666,
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_ZeroThresholdsDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		RunsComplete:    5,
		RunsFailed:      5,
		RunFailRate:     0.5,
		ExtractArticles: 10,
		ArticleFailRate: 1,
		CostUSD:         999.0,
		Evaluations:     1,
		LookbackHours:   24,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
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
		{Type: AlertRunFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertCostOverrun, Severity: "high", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: ""})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertRunFailureRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	a.retry = resilience.PolicyFrom(3, 1, 5)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertCostOverrun, Message: "test"}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})
	a.retry = resilience.PolicyFrom(3, 1, 5)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertRunFailureRate, Message: "test"}})
	assert.Equal(t, 0, sent)
	assert.Equal(t, int32(1), calls.Load())
}
