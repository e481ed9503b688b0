package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/cost"
	"github.com/sells-group/newsfacts/internal/dataset"
	"github.com/sells-group/newsfacts/internal/extract"
	"github.com/sells-group/newsfacts/internal/model"
	"github.com/sells-group/newsfacts/internal/store"
	"github.com/sells-group/newsfacts/internal/taxonomy"
)

type extractOptions struct {
	ArticlesPath    string
	GroundTruthPath string
	OutputPath      string
	Limit           int
	ResumeRunID     string
}

var extractOpts extractOptions

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured facts from articles with an LLM",
	Long:  "Runs the configured LLM provider over every article that has ground truth and writes one prediction per article.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if provider, _ := cmd.Flags().GetString("provider"); provider != "" {
			cfg.Extract.Provider = provider
		}
		if noBatch, _ := cmd.Flags().GetBool("no-batch"); noBatch {
			cfg.Anthropic.NoBatch = true
		}
		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		tx, err := taxonomy.Load(cfg.Extract.TaxonomyPath)
		if err != nil {
			return err
		}
		ext, err := initExtractor(cfg, tx)
		if err != nil {
			return err
		}

		st := initOptionalStore(ctx, cfg)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		opts := extractOpts.withDefaults()
		out, err := runExtract(ctx, ext, st, opts)
		if out != nil {
			if n := countOffTaxonomy(out.Predictions, tx); n > 0 {
				zap.L().Warn("extract: predictions outside the taxonomy", zap.Int("count", n))
			}
			printExtractSummary(os.Stdout, out, opts.OutputPath)
		}
		return err
	},
}

func init() {
	f := extractCmd.Flags()
	f.StringVar(&extractOpts.ArticlesPath, "articles", "", "articles JSON file (default from config)")
	f.StringVar(&extractOpts.GroundTruthPath, "ground-truth", "", "ground truth JSON file (default from config)")
	f.StringVarP(&extractOpts.OutputPath, "output", "o", "", "predictions output file (default from config)")
	f.IntVar(&extractOpts.Limit, "limit", 0, "process at most N articles (0 = all)")
	f.StringVar(&extractOpts.ResumeRunID, "resume", "", "resume from the latest checkpoint of this run id")
	f.String("provider", "", "LLM provider: anthropic or openai (default from config)")
	f.Bool("no-batch", false, "disable the Anthropic batch API")
	rootCmd.AddCommand(extractCmd)
}

func (o extractOptions) withDefaults() extractOptions {
	if o.ArticlesPath == "" {
		o.ArticlesPath = cfg.Data.ArticlesPath
	}
	if o.GroundTruthPath == "" {
		o.GroundTruthPath = cfg.Data.GroundTruthPath
	}
	if o.OutputPath == "" {
		o.OutputPath = cfg.Data.PredictionsPath
	}
	return o
}

// runExtract loads the datasets, runs the extractor and writes predictions.
// st may be nil. Checkpoints go to the output file and, when st is set, to
// the run history.
func runExtract(ctx context.Context, ext extract.Extractor, st store.Store, opts extractOptions) (*extract.Output, error) {
	articles, err := dataset.LoadArticles(ctx, opts.ArticlesPath)
	if err != nil {
		return nil, err
	}
	truth, err := dataset.LoadGroundTruth(ctx, opts.GroundTruthPath)
	if err != nil {
		return nil, err
	}

	selected := extract.SelectArticles(articles, truth)
	if opts.Limit > 0 && len(selected) > opts.Limit {
		selected = selected[:opts.Limit]
	}

	var prior []model.Prediction
	if opts.ResumeRunID != "" {
		if st == nil {
			return nil, eris.New("extract: --resume needs a configured store")
		}
		cp, err := st.LatestCheckpoint(ctx, opts.ResumeRunID)
		if err != nil {
			return nil, err
		}
		if cp == nil {
			zap.L().Warn("extract: no checkpoint to resume from", zap.String("run_id", opts.ResumeRunID))
		} else {
			prior = cp.Predictions
		}
	}

	var run *model.Run
	if st != nil {
		run, err = st.CreateRun(ctx, model.RunKindExtract, map[string]any{
			"provider":     ext.Name(),
			"model":        ext.Model(),
			"articles":     opts.ArticlesPath,
			"ground_truth": opts.GroundTruthPath,
			"output":       opts.OutputPath,
			"limit":        opts.Limit,
			"resumed_from": opts.ResumeRunID,
		})
		if err != nil {
			zap.L().Warn("extract: could not record run", zap.Error(err))
			run = nil
		}
	}

	checkpoint := func(ctx context.Context, done []model.Prediction) error {
		if run != nil {
			if _, err := st.SaveCheckpoint(ctx, run.ID, done); err != nil {
				return err
			}
		}
		return dataset.WriteJSON(opts.OutputPath, done)
	}

	runner := extract.NewRunner(ext, runnerConfig(cfg), cost.NewCalculator(cfg.Rates()), checkpoint)
	out, runErr := runner.Run(ctx, extract.Input{Articles: selected, GroundTruth: truth, Prior: prior})

	if err := dataset.WriteJSON(opts.OutputPath, out.Predictions); err != nil {
		finishRun(st, run, nil, err)
		return out, eris.Wrap(err, "extract: write predictions")
	}
	zap.L().Info("extract: predictions saved", zap.String("path", opts.OutputPath), zap.Int("count", len(out.Predictions)))

	finishRun(st, run, &out.Summary, runErr)
	return out, runErr
}

// finishRun records the outcome of run. It uses a fresh context so an
// interrupted run is still marked failed.
func finishRun(st store.Store, run *model.Run, summary *model.RunSummary, runErr error) {
	if st == nil || run == nil {
		return
	}
	ctx := context.Background()
	var err error
	if runErr != nil {
		err = st.FailRun(ctx, run.ID, runErr.Error())
	} else {
		err = st.CompleteRun(ctx, run.ID, summary)
	}
	if err != nil {
		zap.L().Warn("could not update run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// countOffTaxonomy counts successful predictions whose topic and subtopic
// pair is not in tx. Such labels are kept and simply fail to match.
func countOffTaxonomy(preds []model.Prediction, tx *taxonomy.Taxonomy) int {
	var n int
	for _, p := range preds {
		if p.Scorable() && !tx.Valid(p.Extraction.Topic, p.Extraction.Subtopic) {
			n++
		}
	}
	return n
}

func printExtractSummary(w io.Writer, out *extract.Output, path string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Articles:\t%d\n", out.Summary.Articles)
	_, _ = fmt.Fprintf(tw, "Successful:\t%d\n", out.Summary.Succeeded)
	_, _ = fmt.Fprintf(tw, "Failed:\t%d\n", out.Summary.Failed)
	_, _ = fmt.Fprintf(tw, "Tokens:\t%d\n", out.Summary.TotalTokens)
	_, _ = fmt.Fprintf(tw, "Estimated cost:\t$%.4f\n", out.Cost)
	_, _ = fmt.Fprintf(tw, "Predictions:\t%s\n", path)
	for _, r := range failureReasons(out.Predictions) {
		_, _ = fmt.Fprintf(tw, "  %dx\t%s\n", r.count, r.reason)
	}
	_ = tw.Flush()
}

type failureReason struct {
	reason string
	count  int
}

// failureReasons groups unsuccessful predictions by error message, most
// frequent first.
func failureReasons(preds []model.Prediction) []failureReason {
	counts := make(map[string]int)
	for _, p := range preds {
		if p.Success {
			continue
		}
		msg := p.ErrorMessage()
		if msg == "" {
			msg = "unknown error"
		}
		counts[msg]++
	}

	out := make([]failureReason, 0, len(counts))
	for reason, n := range counts {
		out = append(out, failureReason{reason: reason, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].reason < out[j].reason
	})
	return out
}
