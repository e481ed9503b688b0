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

	"github.com/sells-group/newsfacts/internal/config"
	"github.com/sells-group/newsfacts/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate     AlertType = "run_failure_rate"
	AlertArticleFailureRate AlertType = "article_failure_rate"
	AlertCostOverrun        AlertType = "cost_overrun"
	AlertQualityRegression  AlertType = "quality_regression"
)

// minFinishedRuns is how many finished runs are needed before the run
// failure rate is judged.
const minFinishedRuns = 5

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
	retry  resilience.Policy
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  resilience.PolicyFrom(3, 500, 5000),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// A zero threshold disables its check.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.RunsComplete + snap.RunsFailed
	if a.cfg.FailureRateThreshold > 0 && finished >= minFinishedRuns && snap.RunFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.RunFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.RunFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.ArticleFailureRateThreshold > 0 && snap.ExtractArticles > 0 && snap.ArticleFailRate > a.cfg.ArticleFailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertArticleFailureRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d of %d articles failed extraction (%.1f%%, threshold %.1f%%) in last %dh",
				snap.ExtractFailed, snap.ExtractArticles,
				snap.ArticleFailRate*100, a.cfg.ArticleFailureRateThreshold*100, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.ArticleFailRate,
				"threshold":    a.cfg.ArticleFailureRateThreshold,
				"failed":       snap.ExtractFailed,
				"articles":     snap.ExtractArticles,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CostThresholdUSD > 0 && snap.CostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"API cost $%.2f exceeds threshold $%.2f in last %dh",
				snap.CostUSD, a.cfg.CostThresholdUSD, snap.LookbackHours,
			),
			Details: map[string]any{
				"cost_usd":      snap.CostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"total_tokens":  snap.TotalTokens,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MinEntityF1 > 0 && snap.Evaluations > 0 && snap.LatestEntityF1 < a.cfg.MinEntityF1 {
		alerts = append(alerts, Alert{
			Type:     AlertQualityRegression,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Latest entity F1 %.3f is below the %.3f floor (window average %.3f over %d evaluations)",
				snap.LatestEntityF1, a.cfg.MinEntityF1, snap.AvgEntityF1, snap.Evaluations,
			),
			Details: map[string]any{
				"latest_entity_f1": snap.LatestEntityF1,
				"avg_entity_f1":    snap.AvgEntityF1,
				"min_entity_f1":    a.cfg.MinEntityF1,
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
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
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

// sendWebhook posts a single alert to the webhook URL. 429 and 5xx
// responses come back as transient errors.
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
		err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
