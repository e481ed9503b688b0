//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/newsfacts/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Kind:      model.RunKindExtract,
			Status:    model.RunStatusComplete,
			Summary:   &model.RunSummary{Articles: 42, TotalCost: 0.125},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Kind:      model.RunKindEvaluate,
			Status:    model.RunStatusComplete,
			Summary:   &model.RunSummary{Articles: 40, Metrics: map[string]float64{"entity_f1": 0.8123}},
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-1 * time.Hour),
		},
		{
			ID:        "ghi12345",
			Kind:      model.RunKindExtract,
			Status:    model.RunStatusRunning,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "KIND")
	assert.Contains(t, output, "ARTICLES")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "extract")
	assert.Contains(t, output, "evaluate")
	assert.Contains(t, output, "$0.1250")
	assert.Contains(t, output, "F1 0.812")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "2m0s")
}

func TestFormatRunsList_FailedRun(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Kind:      model.RunKindExtract,
			Status:    model.RunStatusFailed,
			Error:     "extract: run interrupted: context canceled",
			CreatedAt: now,
			UpdatedAt: now.Add(30 * time.Second),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "extract: run interrupted: c...")
}

func TestRunsStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	runs := []model.Run{
		{
			ID: "1", Kind: model.RunKindExtract, Status: model.RunStatusComplete,
			Summary:   &model.RunSummary{Articles: 10, TotalCost: 0.5},
			CreatedAt: now, UpdatedAt: now.Add(10 * time.Second),
		},
		{
			ID: "2", Kind: model.RunKindEvaluate, Status: model.RunStatusComplete,
			Summary:   &model.RunSummary{Articles: 10, Metrics: map[string]float64{"entity_f1": 0.7}},
			CreatedAt: now, UpdatedAt: now.Add(30 * time.Second),
		},
		{
			ID: "3", Kind: model.RunKindEvaluate, Status: model.RunStatusComplete,
			Summary:   &model.RunSummary{Articles: 5, Metrics: map[string]float64{"entity_f1": 0.9}},
			CreatedAt: now, UpdatedAt: now.Add(20 * time.Second),
		},
		{ID: "4", Kind: model.RunKindExtract, Status: model.RunStatusFailed, Error: "boom", CreatedAt: now, UpdatedAt: now},
		{ID: "5", Kind: model.RunKindExtract, Status: model.RunStatusRunning, CreatedAt: now, UpdatedAt: now},
	}

	s := computeRunStats(runs)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 3, s.Complete)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Running)
	assert.Equal(t, 25, s.Articles)
	assert.InDelta(t, 0.5, s.TotalCost, 1e-9)
	assert.InDelta(t, 0.9, s.BestEntityF1, 1e-9)
	assert.InDelta(t, 20.0, s.AvgDurSecs, 1e-9)
}

func TestRunsStats_Empty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Equal(t, 0, s.Total)
	assert.Zero(t, s.AvgDurSecs)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{Total: 3, Complete: 2, Failed: 1, Articles: 12, TotalCost: 0.02, BestEntityF1: 0.75, AvgDurSecs: 12.5})

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "$0.0200")
	assert.Contains(t, output, "0.750")
	assert.Contains(t, output, "12.5s")
}

func TestFormatRunStats_OmitsEmptyRows(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{Total: 1, Failed: 1})

	output := buf.String()
	assert.NotContains(t, output, "Best entity F1")
	assert.NotContains(t, output, "Avg duration")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}
