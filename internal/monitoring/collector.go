// Package monitoring watches extraction and evaluation run history and
// raises webhook alerts when failure rates, cost or quality cross their
// thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newsfacts/internal/model"
	"github.com/sells-group/newsfacts/internal/store"
)

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunFailRate  float64 `json:"run_fail_rate"`

	// Extraction metrics, summed over finished extract runs.
	ExtractArticles int     `json:"extract_articles"`
	ExtractFailed   int     `json:"extract_failed"`
	ArticleFailRate float64 `json:"article_fail_rate"`
	CostUSD         float64 `json:"cost_usd"`
	TotalTokens     int     `json:"total_tokens"`

	// Evaluation metrics over complete evaluate runs.
	Evaluations    int     `json:"evaluations"`
	LatestEntityF1 float64 `json:"latest_entity_f1"`
	AvgEntityF1    float64 `json:"avg_entity_f1"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run store.
type Collector struct {
	store RunLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var f1Sum float64

	// Runs arrive newest first.
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsRunning++
		}
		if r.Summary == nil {
			continue
		}

		switch r.Kind {
		case model.RunKindExtract:
			snap.ExtractArticles += r.Summary.Articles
			snap.ExtractFailed += r.Summary.Failed
			snap.CostUSD += r.Summary.TotalCost
			snap.TotalTokens += r.Summary.TotalTokens
		case model.RunKindEvaluate:
			if r.Status != model.RunStatusComplete {
				continue
			}
			f1 := r.Summary.Metrics["entity_f1"]
			if snap.Evaluations == 0 {
				snap.LatestEntityF1 = f1
			}
			snap.Evaluations++
			f1Sum += f1
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.ExtractArticles > 0 {
		snap.ArticleFailRate = float64(snap.ExtractFailed) / float64(snap.ExtractArticles)
	}
	if snap.Evaluations > 0 {
		snap.AvgEntityF1 = f1Sum / float64(snap.Evaluations)
	}

	return snap, nil
}
