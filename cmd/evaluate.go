package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/dataset"
	"github.com/sells-group/newsfacts/internal/eval"
	"github.com/sells-group/newsfacts/internal/model"
	"github.com/sells-group/newsfacts/internal/store"
)

type evaluateOptions struct {
	PredictionsPath string
	GroundTruthPath string
	ReportPath      string
	XLSXPath        string
	CSVPath         string
	NoSave          bool
}

var evalOpts evaluateOptions

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score predictions against ground truth",
	Long:  "Computes entity, role, topic and subtopic metrics for a predictions file and writes the evaluation report.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("evaluate"); err != nil {
			return err
		}

		opts := evalOpts.withDefaults()
		preds, err := dataset.LoadPredictions(ctx, opts.PredictionsPath)
		if err != nil {
			return err
		}
		truth, err := dataset.LoadGroundTruth(ctx, opts.GroundTruthPath)
		if err != nil {
			return err
		}

		st := initOptionalStore(ctx, cfg)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		res, _, err := evaluateAndRecord(ctx, st, preds, truth, opts.reportPath(), map[string]any{
			"predictions":  opts.PredictionsPath,
			"ground_truth": opts.GroundTruthPath,
		})
		if err != nil {
			return err
		}

		if opts.XLSXPath != "" {
			if err := eval.WriteDetailsXLSX(opts.XLSXPath, res); err != nil {
				return err
			}
		}
		if opts.CSVPath != "" {
			if err := writeDetailsCSVFile(opts.CSVPath, res.TopicMetrics.Details); err != nil {
				return err
			}
		}

		printEvalSummary(os.Stdout, res)
		return nil
	},
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVarP(&evalOpts.PredictionsPath, "predictions", "p", "", "predictions JSON file (default from config)")
	f.StringVar(&evalOpts.GroundTruthPath, "ground-truth", "", "ground truth JSON file (default from config)")
	f.StringVar(&evalOpts.ReportPath, "report", "", "evaluation report path (default from config)")
	f.StringVar(&evalOpts.XLSXPath, "xlsx", "", "also write metrics and topic details to this workbook")
	f.StringVar(&evalOpts.CSVPath, "csv", "", "also write topic details to this CSV file")
	f.BoolVar(&evalOpts.NoSave, "no-save", false, "do not write the JSON report")
	rootCmd.AddCommand(evaluateCmd)
}

func (o evaluateOptions) withDefaults() evaluateOptions {
	if o.PredictionsPath == "" {
		o.PredictionsPath = cfg.Data.PredictionsPath
	}
	if o.GroundTruthPath == "" {
		o.GroundTruthPath = cfg.Data.GroundTruthPath
	}
	if o.ReportPath == "" {
		o.ReportPath = cfg.Eval.ReportPath
	}
	if !cfg.Eval.SaveReport {
		o.NoSave = true
	}
	return o
}

// reportPath is empty when the report should not be written.
func (o evaluateOptions) reportPath() string {
	if o.NoSave {
		return ""
	}
	return o.ReportPath
}

// evaluateAndRecord scores preds, writes the report to reportPath when set
// and records the run in st when st is non-nil. A report that cannot be
// written is logged and the computed result is still returned.
func evaluateAndRecord(ctx context.Context, st store.Store, preds []model.Prediction, truth []model.GroundTruth, reportPath string, params map[string]any) (*eval.Result, *model.Run, error) {
	var (
		res *eval.Result
		err error
	)
	if reportPath != "" {
		res, err = eval.RunAndSave(preds, truth, reportPath)
	} else {
		res, err = eval.Run(preds, truth)
	}

	var perr *eval.PersistError
	if errors.As(err, &perr) {
		zap.L().Warn("evaluate: report not saved", zap.String("path", perr.Path), zap.Error(perr.Err))
		err = nil
	}
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("evaluate: complete",
		zap.Int("predictions", len(preds)),
		zap.Int("ground_truth", len(truth)),
		zap.Float64("entity_f1", res.Summary.EntityF1),
		zap.Float64("topic_accuracy", res.Summary.TopicAccuracy),
	)

	if st == nil {
		return res, nil, nil
	}
	run, err := recordEvaluation(ctx, st, preds, res, params)
	if err != nil {
		zap.L().Warn("evaluate: could not record run", zap.Error(err))
		return res, nil, nil
	}
	return res, run, nil
}

func recordEvaluation(ctx context.Context, st store.Store, preds []model.Prediction, res *eval.Result, params map[string]any) (*model.Run, error) {
	run, err := st.CreateRun(ctx, model.RunKindEvaluate, params)
	if err != nil {
		return nil, err
	}
	if err := st.SaveReport(ctx, run.ID, res); err != nil {
		_ = st.FailRun(ctx, run.ID, err.Error())
		return nil, err
	}

	succeeded := model.CountSuccessful(preds)
	summary := &model.RunSummary{
		Articles:  len(preds),
		Succeeded: succeeded,
		Failed:    len(preds) - succeeded,
		Matched:   res.TopicMetrics.TotalMatched,
		Metrics:   res.Metrics(),
	}
	if err := st.CompleteRun(ctx, run.ID, summary); err != nil {
		return nil, err
	}
	return st.GetRun(ctx, run.ID)
}

func writeDetailsCSVFile(path string, details []eval.TopicDetail) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "evaluate: create %s", path)
	}
	if err := eval.WriteDetailsCSV(f, details); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "evaluate: close %s", path)
}

func printEvalSummary(w io.Writer, res *eval.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "METRIC\tVALUE")
	_, _ = fmt.Fprintf(tw, "entity_precision\t%.4f\n", res.EntityMetrics.EntityPrecision)
	_, _ = fmt.Fprintf(tw, "entity_recall\t%.4f\n", res.EntityMetrics.EntityRecall)
	_, _ = fmt.Fprintf(tw, "entity_f1\t%.4f\n", res.Summary.EntityF1)
	_, _ = fmt.Fprintf(tw, "role_precision\t%.4f\n", res.EntityMetrics.RolePrecision)
	_, _ = fmt.Fprintf(tw, "role_recall\t%.4f\n", res.EntityMetrics.RoleRecall)
	_, _ = fmt.Fprintf(tw, "role_f1\t%.4f\n", res.Summary.RoleF1)
	_, _ = fmt.Fprintf(tw, "topic_accuracy\t%.4f\n", res.Summary.TopicAccuracy)
	_, _ = fmt.Fprintf(tw, "subtopic_accuracy\t%.4f\n", res.Summary.SubtopicAccuracy)
	_, _ = fmt.Fprintf(tw, "matched\t%d\n", res.TopicMetrics.TotalMatched)
	_ = tw.Flush()
}
