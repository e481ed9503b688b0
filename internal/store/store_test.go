package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newsfacts/internal/model"
)

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunKindExtract, map[string]any{"provider": "openai", "limit": 50})
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, model.RunKindExtract, got.Kind)
		assert.Equal(t, model.RunStatusRunning, got.Status)
		assert.Equal(t, "openai", got.Params["provider"])
		assert.EqualValues(t, 50, got.Params["limit"])
		assert.Nil(t, got.Summary)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("CompleteRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunKindEvaluate, nil)
		require.NoError(t, err)

		summary := &model.RunSummary{
			Articles:  10,
			Succeeded: 9,
			Failed:    1,
			Metrics:   map[string]float64{"entity_f1": 0.75},
		}
		require.NoError(t, s.CompleteRun(ctx, run.ID, summary))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		require.NotNil(t, got.Summary)
		assert.Equal(t, 9, got.Summary.Succeeded)
		assert.InDelta(t, 0.75, got.Summary.Metrics["entity_f1"], 1e-9)
	})

	t.Run("FailRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunKindExtract, nil)
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, run.ID, "openai: 401 unauthorized"))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, "openai: 401 unauthorized", got.Error)
	})

	t.Run("UpdateMissingRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		assert.ErrorIs(t, s.CompleteRun(ctx, "missing", &model.RunSummary{}), ErrNotFound)
		assert.ErrorIs(t, s.FailRun(ctx, "missing", "x"), ErrNotFound)
	})

	t.Run("ListRunsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateRun(ctx, model.RunKindExtract, nil)
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, model.RunKindEvaluate, nil)
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, model.RunKindEvaluate, nil)
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, a.ID, "boom"))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		evals, err := s.ListRuns(ctx, RunFilter{Kind: model.RunKindEvaluate})
		require.NoError(t, err)
		assert.Len(t, evals, 2)

		failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, a.ID, failed[0].ID)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		offset, err := s.ListRuns(ctx, RunFilter{Limit: 10, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, offset, 1)

		recent, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(-time.Hour)})
		require.NoError(t, err)
		assert.Len(t, recent, 3)

		future, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, future)
	})

	t.Run("ListRunsEmpty", func(t *testing.T) {
		s := newStore(t)
		runs, err := s.ListRuns(context.Background(), RunFilter{})
		require.NoError(t, err)
		assert.NotNil(t, runs)
		assert.Empty(t, runs)
	})

	t.Run("Checkpoints", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunKindExtract, nil)
		require.NoError(t, err)

		none, err := s.LatestCheckpoint(ctx, run.ID)
		require.NoError(t, err)
		assert.Nil(t, none)

		first := []model.Prediction{
			model.NewSuccess("a1", model.Extraction{Topic: "Politics", People: []model.Person{{Name: "José Álvarez", Roles: []string{"Mayor"}}}}, nil),
		}
		_, err = s.SaveCheckpoint(ctx, run.ID, first)
		require.NoError(t, err)

		second := append(first, model.NewFailure("a2", errors.New("timeout"), map[string]any{"error_type": "transient"}))
		cp, err := s.SaveCheckpoint(ctx, run.ID, second)
		require.NoError(t, err)
		assert.Equal(t, 2, cp.Completed)

		latest, err := s.LatestCheckpoint(ctx, run.ID)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, 2, latest.Completed)
		require.Len(t, latest.Predictions, 2)
		assert.Equal(t, "José Álvarez", latest.Predictions[0].Extraction.People[0].Name)
		assert.False(t, latest.Predictions[1].Success)
		assert.Equal(t, "timeout", latest.Predictions[1].ErrorMessage())
	})

	t.Run("Reports", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, model.RunKindEvaluate, nil)
		require.NoError(t, err)

		_, err = s.GetReport(ctx, run.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.SaveReport(ctx, run.ID, map[string]any{"summary": map[string]float64{"entity_f1": 0.5}}))
		require.NoError(t, s.SaveReport(ctx, run.ID, map[string]any{"summary": map[string]float64{"entity_f1": 0.9}}))

		raw, err := s.GetReport(ctx, run.ID)
		require.NoError(t, err)

		var doc struct {
			Summary map[string]float64 `json:"summary"`
		}
		require.NoError(t, json.Unmarshal(raw, &doc))
		assert.InDelta(t, 0.9, doc.Summary["entity_f1"], 1e-9)
	})
}
