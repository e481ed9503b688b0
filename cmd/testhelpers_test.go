//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/newsfacts/internal/config"
	"github.com/sells-group/newsfacts/internal/model"
	"github.com/sells-group/newsfacts/internal/store"
)

// withConfig installs c as the global config for the duration of the test.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func writeJSONFile(t *testing.T, dir, name string, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func sampleTruth() []model.GroundTruth {
	return []model.GroundTruth{
		{
			UUID:     "a1",
			People:   []model.Person{{Name: "Jane Doe", Roles: []string{"Mayor"}}},
			Topic:    "Politics",
			Subtopic: "Local Government",
		},
		{
			UUID:     "a2",
			People:   []model.Person{{Name: "John Roe", Roles: []string{"Coach"}}},
			Topic:    "Sports",
			Subtopic: "Football",
		},
	}
}

func samplePredictions() []model.Prediction {
	return []model.Prediction{
		model.NewSuccess("a1", model.Extraction{
			People:   []model.Person{{Name: "Jane Doe", Roles: []string{"Mayor"}}},
			Topic:    "Politics",
			Subtopic: "Local Government",
		}, nil),
		model.NewSuccess("a2", model.Extraction{
			People:   []model.Person{{Name: "John Roe", Roles: []string{"Coach"}}},
			Topic:    "Sports",
			Subtopic: "Basketball",
		}, nil),
	}
}
