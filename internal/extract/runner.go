package extract

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/newsfacts/internal/cost"
	"github.com/sells-group/newsfacts/internal/model"
	"github.com/sells-group/newsfacts/internal/resilience"
)

// CheckpointFunc receives the predictions completed so far, in input order.
// A checkpoint error is logged and does not stop the run.
type CheckpointFunc func(ctx context.Context, completed []model.Prediction) error

// RunnerConfig controls a Runner.
type RunnerConfig struct {
	Concurrency       int
	CheckpointEvery   int
	RequestsPerMinute int
	Retry             resilience.Policy
	Breaker           resilience.BreakerConfig
	// UseBatch enables the provider batch API when the extractor supports
	// it and more than BatchThreshold articles remain.
	UseBatch       bool
	BatchThreshold int
}

// Input is what one extraction run works on.
type Input struct {
	Articles    []model.Article
	GroundTruth []model.GroundTruth
	// Prior holds predictions from an earlier run. Articles with a
	// successful prior prediction are not extracted again.
	Prior []model.Prediction
}

// Output is the result of a run. Predictions has one entry per selected
// article, in input order.
type Output struct {
	Predictions []model.Prediction
	Usage       model.TokenUsage
	Cost        float64
	Summary     model.RunSummary
}

// Runner extracts a set of articles with bounded concurrency, rate limiting,
// retry and a circuit breaker.
type Runner struct {
	ext        Extractor
	cfg        RunnerConfig
	calc       *cost.Calculator
	checkpoint CheckpointFunc
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
}

// NewRunner creates a Runner. calc and checkpoint may be nil.
func NewRunner(ext Extractor, cfg RunnerConfig, calc *cost.Calculator, checkpoint CheckpointFunc) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 10
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	if cfg.Breaker.Counts == nil {
		// Only provider-side failures trip the breaker, not bad model output.
		cfg.Breaker.Counts = func(err error) bool {
			return resilience.StatusCode(err) != 0 || (resilience.IsTransient(err) && !errors.Is(err, context.Canceled))
		}
	}

	return &Runner{
		ext:        ext,
		cfg:        cfg,
		calc:       calc,
		checkpoint: checkpoint,
		limiter:    rate.NewLimiter(limit, cfg.Concurrency),
		breaker:    resilience.NewBreaker(ext.Name(), cfg.Breaker),
	}
}

// SelectArticles keeps the articles that have ground truth, in input order.
func SelectArticles(arts []model.Article, truth []model.GroundTruth) []model.Article {
	ids := make(map[string]struct{}, len(truth))
	for _, gt := range truth {
		ids[gt.UUID] = struct{}{}
	}
	out := make([]model.Article, 0, len(truth))
	for _, a := range arts {
		if _, ok := ids[a.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// tracker collects predictions and fires checkpoints.
type tracker struct {
	mu        sync.Mutex
	preds     []model.Prediction
	filled    []bool
	completed int
	usage     model.TokenUsage
	cost      float64
	every     int
	fn        CheckpointFunc
}

func (t *tracker) set(ctx context.Context, i int, p model.Prediction, u model.TokenUsage, c float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.filled[i] {
		return
	}
	t.preds[i] = p
	t.filled[i] = true
	t.completed++
	t.usage.Add(u)
	t.cost += c

	if t.fn != nil && t.completed%t.every == 0 {
		snap := make([]model.Prediction, 0, t.completed)
		for j, ok := range t.filled {
			if ok {
				snap = append(snap, t.preds[j])
			}
		}
		if err := t.fn(ctx, snap); err != nil {
			zap.L().Warn("extract: checkpoint failed", zap.Int("completed", t.completed), zap.Error(err))
		} else {
			zap.L().Info("extract: checkpoint saved", zap.Int("completed", t.completed))
		}
	}
}

// Run extracts every article in in.Articles that has ground truth. Each
// selected article yields exactly one prediction. If ctx is cancelled the
// unfinished articles are recorded as failures and ctx's error is returned
// with the output.
func (r *Runner) Run(ctx context.Context, in Input) (*Output, error) {
	start := time.Now()
	arts := SelectArticles(in.Articles, in.GroundTruth)

	coverage := 0.0
	if len(in.GroundTruth) > 0 {
		coverage = float64(len(arts)) / float64(len(in.GroundTruth))
	}
	log := zap.L().With(
		zap.String("provider", r.ext.Name()),
		zap.String("model", r.ext.Model()),
	)
	log.Info("extract: articles selected",
		zap.Int("articles", len(in.Articles)),
		zap.Int("ground_truth", len(in.GroundTruth)),
		zap.Int("matched", len(arts)),
		zap.Float64("coverage", coverage),
	)

	t := &tracker{
		preds:  make([]model.Prediction, len(arts)),
		filled: make([]bool, len(arts)),
		every:  r.cfg.CheckpointEvery,
		fn:     r.checkpoint,
	}

	prior := make(map[string]model.Prediction, len(in.Prior))
	for _, p := range in.Prior {
		if p.Success {
			prior[p.ArticleID] = p
		}
	}
	var pending []int
	for i, a := range arts {
		if p, ok := prior[a.ID]; ok {
			t.preds[i] = p
			t.filled[i] = true
			t.completed++
			continue
		}
		pending = append(pending, i)
	}
	if len(prior) > 0 {
		log.Info("extract: resuming", zap.Int("reused", t.completed), zap.Int("pending", len(pending)))
	}

	if be, ok := r.ext.(BatchExtractor); ok && r.cfg.UseBatch && len(pending) > r.cfg.BatchThreshold {
		pending = r.runBatch(ctx, be, arts, pending, t)
	}

	r.runDirect(ctx, arts, pending, t)

	// Anything still unfilled was never attempted because ctx ended.
	notAttempted := eris.New("extract: not attempted")
	if cause := context.Cause(ctx); cause != nil {
		notAttempted = eris.Wrap(cause, "extract: not attempted")
	}
	for i := range arts {
		if !t.filled[i] {
			t.preds[i] = r.prediction(arts[i].ID, nil, notAttempted, model.TokenUsage{}, 0, "direct", 0)
			t.filled[i] = true
		}
	}

	succeeded := model.CountSuccessful(t.preds)
	out := &Output{
		Predictions: t.preds,
		Usage:       t.usage,
		Cost:        t.cost,
		Summary: model.RunSummary{
			Articles:    len(arts),
			Succeeded:   succeeded,
			Failed:      len(arts) - succeeded,
			Matched:     len(arts),
			TotalTokens: t.usage.Total(),
			TotalCost:   t.cost,
			DurationMs:  time.Since(start).Milliseconds(),
		},
	}

	log.Info("extract: run complete",
		zap.Int("successful", out.Summary.Succeeded),
		zap.Int("failed", out.Summary.Failed),
		zap.Int("total_tokens", out.Summary.TotalTokens),
		zap.Float64("estimated_cost_usd", out.Cost),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := ctx.Err(); err != nil {
		return out, eris.Wrap(err, "extract: run interrupted")
	}
	return out, nil
}

// runBatch submits pending articles through the batch API and returns the
// indices that still need a direct call.
func (r *Runner) runBatch(ctx context.Context, be BatchExtractor, arts []model.Article, pending []int, t *tracker) []int {
	batchArts := make([]model.Article, len(pending))
	for j, i := range pending {
		batchArts[j] = arts[i]
	}

	results, err := be.ExtractBatch(ctx, batchArts)
	if err != nil {
		zap.L().Warn("extract: batch failed, falling back to direct calls", zap.Error(err))
	}

	var rest []int
	for _, i := range pending {
		res, ok := results[arts[i].ID]
		if !ok {
			rest = append(rest, i)
			continue
		}
		mode := "direct"
		if res.Batched {
			mode = "batch"
		}
		c := r.calc.Cost(r.ext.Name(), r.ext.Model(), res.Batched, res.Usage)
		t.set(ctx, i, r.prediction(arts[i].ID, res.Extraction, res.Err, res.Usage, c, mode, 1), res.Usage, c)
	}
	return rest
}

func (r *Runner) runDirect(ctx context.Context, arts []model.Article, pending []int, t *tracker) {
	if len(pending) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, i := range pending {
		if gctx.Err() != nil {
			break
		}
		a := arts[i]
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				err = eris.Wrap(err, "extract: rate limit wait")
				t.set(gctx, i, r.prediction(a.ID, nil, err, model.TokenUsage{}, 0, "direct", 0), model.TokenUsage{}, 0)
				return nil
			}

			attempts := 0
			policy := r.cfg.Retry
			policy.OnRetry = resilience.LogRetries(r.ext.Name(), "extract")

			var billed model.TokenUsage
			ext, err := resilience.DoVal(gctx, policy, func(ctx context.Context) (*model.Extraction, error) {
				attempts++
				return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*model.Extraction, error) {
					ext, u, err := r.ext.Extract(ctx, a)
					billed.Add(u)
					return ext, err
				})
			})

			c := r.calc.Cost(r.ext.Name(), r.ext.Model(), false, billed)
			t.set(gctx, i, r.prediction(a.ID, ext, err, billed, c, "direct", attempts), billed, c)
			if err != nil {
				zap.L().Warn("extract: article failed",
					zap.String("article_id", a.ID),
					zap.Int("attempts", attempts),
					zap.String("error_type", resilience.Classify(err)),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) prediction(id string, ext *model.Extraction, err error, u model.TokenUsage, c float64, mode string, attempts int) model.Prediction {
	md := r.metadata(u, c, mode, attempts)
	if err != nil || ext == nil {
		if err == nil {
			err = eris.Wrap(ErrUnparseable, "no extraction returned")
		}
		md["error_type"] = resilience.Classify(err)
		return model.NewFailure(id, err, md)
	}
	return model.NewSuccess(id, *ext, md)
}

func (r *Runner) metadata(u model.TokenUsage, c float64, mode string, attempts int) map[string]any {
	return map[string]any{
		"provider":           r.ext.Name(),
		"model":              r.ext.Model(),
		"mode":               mode,
		"attempts":           attempts,
		"tokens_used":        u.Total(),
		"input_tokens":       u.InputTokens,
		"output_tokens":      u.OutputTokens,
		"estimated_cost_usd": c,
	}
}
