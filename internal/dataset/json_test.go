package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newsfacts/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeJSONArray(t *testing.T) {
	input := `[{"id":"a","text":"one"},{"id":"b","text":"two"}]`

	ch, errCh := DecodeJSONArray[model.Article](context.Background(), strings.NewReader(input))

	var records []model.Article
	for rec := range ch {
		records = append(records, rec)
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "two", records[1].Text)
}

func TestDecodeJSONArray_NotArray(t *testing.T) {
	ch, errCh := DecodeJSONArray[model.Article](context.Background(), strings.NewReader(`{"id":"a"}`))
	for range ch {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestDecodeJSONArray_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, errCh := DecodeJSONArray[model.Article](ctx, strings.NewReader(`[{"id":"a","text":""}]`))
	for range ch {
	}
	err := <-errCh
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadPredictions(t *testing.T) {
	path := writeFile(t, "preds.json", `[
	  {"article_id":"x1","success":true,"extraction":{"people":[{"name":"Ana","roles":["journalist"]}],"topic":"Sports","subtopic":"Football","date":"2024-01-01"},"error":null,"metadata":{"model":"gpt-4o-mini","tokens_used":120}},
	  {"article_id":"x2","success":false,"extraction":null,"error":"timeout","metadata":{}}
	]`)

	preds, err := LoadPredictions(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, preds, 2)

	assert.True(t, preds[0].Scorable())
	assert.Equal(t, "Ana", preds[0].Extraction.People[0].Name)
	assert.Equal(t, "gpt-4o-mini", preds[0].Metadata["model"])
	assert.False(t, preds[1].Scorable())
	assert.Equal(t, "timeout", preds[1].ErrorMessage())
}

func TestLoadPredictions_MissingArticleID(t *testing.T) {
	path := writeFile(t, "preds.json", `[
	  {"article_id":"x1","success":false,"extraction":null,"error":"boom","metadata":{}},
	  {"success":true,"extraction":null,"error":null,"metadata":{}}
	]`)

	_, err := LoadPredictions(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))
	assert.Contains(t, err.Error(), "record 1")
}

func TestLoadPredictions_WrongType(t *testing.T) {
	path := writeFile(t, "preds.json", `[{"article_id":"x1","success":"yes"}]`)

	_, err := LoadPredictions(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))
}

func TestLoadGroundTruth(t *testing.T) {
	path := writeFile(t, "gt.json", `[
	  {"uuid":"x1","people":[{"name":"Élodie Férrand","roles":["mayor"]}],"topic":"Politics","subtopic":"Local"},
	  {"uuid":"x2","people":[],"topic":"Health","subtopic":"Epidemic"}
	]`)

	gt, err := LoadGroundTruth(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, gt, 2)
	assert.Equal(t, "Élodie Férrand", gt[0].People[0].Name)
	assert.Empty(t, gt[1].People)
}

func TestLoadGroundTruth_PersonWithoutName(t *testing.T) {
	path := writeFile(t, "gt.json", `[{"uuid":"x1","people":[{"roles":["mayor"]}],"topic":"Politics","subtopic":"Local"}]`)

	_, err := LoadGroundTruth(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))
}

func TestLoadArticles_EmptyFile(t *testing.T) {
	path := writeFile(t, "articles.json", ``)

	arts, err := LoadArticles(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestLoadArticles_MissingFile(t *testing.T) {
	_, err := LoadArticles(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset: open")
}

func TestWriteJSON_KeepsUnicodeAndCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	v := map[string]string{"name": "Zoë <Müller> & co"}

	require.NoError(t, WriteJSON(path, v))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Zoë <Müller> & co")
	assert.Contains(t, string(data), "\n  \"name\"")
}

func TestWriteJSON_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := WriteJSON(filepath.Join(blocker, "out.json"), map[string]int{})
	require.Error(t, err)
}

func TestLoadArticles_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/articles.json", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"r1","text":"remote"}]`))
	}))
	defer srv.Close()

	arts, err := LoadArticles(context.Background(), srv.URL+"/articles.json")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "r1", arts[0].ID)
}

func TestLoadArticles_RemoteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := LoadArticles(context.Background(), srv.URL+"/missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset: fetch")
}

func TestLoad_RejectsIncompleteRecords(t *testing.T) {
	tests := []struct {
		name    string
		content string
		load    func(ctx context.Context, path string) error
	}{
		{
			name:    "ground truth without people",
			content: `[{"uuid":"x1","topic":"Sports","subtopic":"Football"}]`,
			load:    loadGroundTruth,
		},
		{
			name:    "ground truth without topic",
			content: `[{"uuid":"x1","people":[],"subtopic":"Football"}]`,
			load:    loadGroundTruth,
		},
		{
			name:    "ground truth without subtopic",
			content: `[{"uuid":"x1","people":[],"topic":"Sports"}]`,
			load:    loadGroundTruth,
		},
		{
			name:    "ground truth person with null roles",
			content: `[{"uuid":"x1","people":[{"name":"Ana","roles":null}],"topic":"Sports","subtopic":"Football"}]`,
			load:    loadGroundTruth,
		},
		{
			name:    "ground truth person without roles",
			content: `[{"uuid":"x1","people":[{"name":"Ana"}],"topic":"Sports","subtopic":"Football"}]`,
			load:    loadGroundTruth,
		},
		{
			name:    "empty extraction object",
			content: `[{"article_id":"x1","success":true,"extraction":{}}]`,
			load:    loadPredictions,
		},
		{
			name:    "extraction without people",
			content: `[{"article_id":"x1","success":true,"extraction":{"topic":"Sports","subtopic":"Football"}}]`,
			load:    loadPredictions,
		},
		{
			name:    "extraction person with null roles",
			content: `[{"article_id":"x1","success":true,"extraction":{"people":[{"name":"Ana","roles":null}],"topic":"Sports","subtopic":"Football"}}]`,
			load:    loadPredictions,
		},
		{
			name:    "failed prediction with extraction",
			content: `[{"article_id":"x1","success":false,"extraction":{"people":[],"topic":"Sports","subtopic":"Football"},"error":"boom"}]`,
			load:    loadPredictions,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "records.json", tt.content)
			err := tt.load(context.Background(), path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord), err.Error())
		})
	}
}

func loadGroundTruth(ctx context.Context, path string) error {
	_, err := LoadGroundTruth(ctx, path)
	return err
}

func loadPredictions(ctx context.Context, path string) error {
	_, err := LoadPredictions(ctx, path)
	return err
}

func TestDecodePredictions(t *testing.T) {
	preds, err := DecodePredictions([]json.RawMessage{
		json.RawMessage(`{"article_id":"x1","success":true,"extraction":{"people":[{"name":"Ana","roles":[]}],"topic":"Sports","subtopic":"Football"}}`),
		json.RawMessage(`{"article_id":"x2","success":false,"extraction":null,"error":"timeout"}`),
	})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.True(t, preds[0].Scorable())
	assert.Equal(t, "timeout", preds[1].ErrorMessage())
}

func TestDecodePredictions_Malformed(t *testing.T) {
	_, err := DecodePredictions([]json.RawMessage{
		json.RawMessage(`{"article_id":"x1","success":true,"extraction":{}}`),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))
	assert.Contains(t, err.Error(), "record 0")
}

func TestDecodeGroundTruth(t *testing.T) {
	truth, err := DecodeGroundTruth([]json.RawMessage{
		json.RawMessage(`{"uuid":"x1","people":[],"topic":"Health","subtopic":"Epidemic"}`),
	})
	require.NoError(t, err)
	require.Len(t, truth, 1)
	assert.Equal(t, "x1", truth[0].UUID)

	_, err = DecodeGroundTruth([]json.RawMessage{json.RawMessage(`{"uuid":"x1"}`)})
	assert.True(t, errors.Is(err, ErrMalformedRecord))

	empty, err := DecodeGroundTruth(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
