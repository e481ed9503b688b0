//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newsfacts/internal/config"
	"github.com/sells-group/newsfacts/internal/eval"
	"github.com/sells-group/newsfacts/internal/model"
)

func TestEvaluateAndRecord_WritesReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "evaluation_report.json")

	res, run, err := evaluateAndRecord(context.Background(), nil, samplePredictions(), sampleTruth(), path, nil)
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.InDelta(t, 1.0, res.Summary.EntityF1, 1e-9)
	assert.InDelta(t, 1.0, res.Summary.TopicAccuracy, 1e-9)
	assert.InDelta(t, 0.5, res.Summary.SubtopicAccuracy, 1e-9)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(b, &saved))
	assert.Contains(t, saved, "entity_metrics")
	assert.Contains(t, saved, "topic_metrics")
	assert.Contains(t, saved, "summary")
}

func TestEvaluateAndRecord_UnwritableReportStillScores(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	res, _, err := evaluateAndRecord(context.Background(), nil, samplePredictions(), sampleTruth(),
		filepath.Join(blocker, "report.json"), nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Summary.RoleF1, 1e-9)
}

func TestEvaluateAndRecord_Malformed(t *testing.T) {
	preds := []model.Prediction{{Success: true, Extraction: &model.Extraction{}}}

	_, _, err := evaluateAndRecord(context.Background(), nil, preds, sampleTruth(), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, eval.ErrMalformedInput)
}

func TestEvaluateAndRecord_PersistsRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	preds := append(samplePredictions(), model.NewFailure("a3", assert.AnError, nil))

	_, run, err := evaluateAndRecord(ctx, st, preds, sampleTruth(), "", map[string]any{"predictions": "p.json"})
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunKindEvaluate, run.Kind)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 3, run.Summary.Articles)
	assert.Equal(t, 1, run.Summary.Failed)
	assert.Equal(t, 2, run.Summary.Matched)
	assert.InDelta(t, 0.5, run.Summary.Metrics["subtopic_accuracy"], 1e-9)

	raw, err := st.GetReport(ctx, run.ID)
	require.NoError(t, err)
	var report eval.Result
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Len(t, report.TopicMetrics.Details, 2)
}

func TestEvaluateOptions_Defaults(t *testing.T) {
	withConfig(t, &config.Config{
		Eval: config.EvalConfig{ReportPath: "results/evaluation_report.json", SaveReport: true},
		Data: config.DataConfig{PredictionsPath: "results/predictions.json", GroundTruthPath: "data/gt.json"},
	})

	o := evaluateOptions{}.withDefaults()
	assert.Equal(t, "results/predictions.json", o.PredictionsPath)
	assert.Equal(t, "data/gt.json", o.GroundTruthPath)
	assert.Equal(t, "results/evaluation_report.json", o.reportPath())

	o = evaluateOptions{NoSave: true}.withDefaults()
	assert.Empty(t, o.reportPath())
}

func TestEvaluateOptions_SaveReportDisabled(t *testing.T) {
	withConfig(t, &config.Config{Eval: config.EvalConfig{ReportPath: "r.json", SaveReport: false}})

	o := evaluateOptions{}.withDefaults()
	assert.Empty(t, o.reportPath())
}

func TestWriteDetailsCSVFile(t *testing.T) {
	res, err := eval.Run(samplePredictions(), sampleTruth())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "details.csv")
	require.NoError(t, writeDetailsCSVFile(path, res.TopicMetrics.Details))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "a2")
	assert.Contains(t, string(b), "Basketball")
}

func TestPrintEvalSummary(t *testing.T) {
	res, err := eval.Run(samplePredictions(), sampleTruth())
	require.NoError(t, err)

	var buf bytes.Buffer
	printEvalSummary(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "METRIC")
	assert.Contains(t, out, "entity_f1")
	assert.Contains(t, out, "1.0000")
	assert.Contains(t, out, "0.5000")
}
