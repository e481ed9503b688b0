// Package dataset reads and writes the JSON files exchanged between the
// extraction and evaluation stages: raw articles, ground-truth annotations
// and prediction sets.
package dataset

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/fetcher"
	"github.com/sells-group/newsfacts/internal/model"
)

// ErrMalformedRecord is returned when an array element does not satisfy the
// record schema for its file kind.
var ErrMalformedRecord = eris.New("dataset: malformed record")

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Expects input in the form [{...},{...}]. An empty reader yields no elements.
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// DecodeRecords reads a JSON array from r, validates every element against
// schema and decodes it into T. The first invalid element aborts the read
// with ErrMalformedRecord.
func DecodeRecords[T any](ctx context.Context, r io.Reader, schema *jsonschema.Schema) ([]T, error) {
	rawCh, errCh := DecodeJSONArray[json.RawMessage](ctx, r)

	out := make([]T, 0)
	i := 0
	for raw := range rawCh {
		rec, err := decodeRecord[T](raw, schema)
		if err != nil {
			// Drain so the decoder goroutine can exit.
			for range rawCh {
			}
			return nil, eris.Wrapf(err, "record %d", i)
		}
		out = append(out, rec)
		i++
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

func decodeRecord[T any](raw json.RawMessage, schema *jsonschema.Schema) (T, error) {
	var rec T
	if schema != nil {
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return rec, eris.Wrap(ErrMalformedRecord, err.Error())
		}
		if err := schema.Validate(doc); err != nil {
			return rec, eris.Wrap(ErrMalformedRecord, err.Error())
		}
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, eris.Wrap(ErrMalformedRecord, err.Error())
	}
	return rec, nil
}

func decodeAll[T any](raws []json.RawMessage, schema *jsonschema.Schema, kind string) ([]T, error) {
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		rec, err := decodeRecord[T](raw, schema)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: %s record %d", kind, i)
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodePredictions validates and decodes already-split prediction records,
// such as the elements of an API request body.
func DecodePredictions(raws []json.RawMessage) ([]model.Prediction, error) {
	return decodeAll[model.Prediction](raws, predictionSchema, "predictions")
}

// DecodeGroundTruth validates and decodes already-split ground truth records.
func DecodeGroundTruth(raws []json.RawMessage) ([]model.GroundTruth, error) {
	return decodeAll[model.GroundTruth](raws, groundTruthSchema, "ground truth")
}

// Remote downloads http(s) dataset paths.
var Remote fetcher.Fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})

func open(ctx context.Context, path string) (io.ReadCloser, error) {
	if fetcher.IsRemote(path) {
		body, err := Remote.Download(ctx, path)
		return body, eris.Wrapf(err, "dataset: fetch %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	return f, nil
}

func loadFile[T any](ctx context.Context, path string, schema *jsonschema.Schema, kind string) ([]T, error) {
	f, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	recs, err := DecodeRecords[T](ctx, f, schema)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: load %s %s", kind, path)
	}

	zap.L().Debug("dataset: loaded",
		zap.String("kind", kind),
		zap.String("path", path),
		zap.Int("records", len(recs)),
	)
	return recs, nil
}

// LoadArticles reads the raw article array.
func LoadArticles(ctx context.Context, path string) ([]model.Article, error) {
	return loadFile[model.Article](ctx, path, articleSchema, "articles")
}

// LoadGroundTruth reads the annotated reference array.
func LoadGroundTruth(ctx context.Context, path string) ([]model.GroundTruth, error) {
	return loadFile[model.GroundTruth](ctx, path, groundTruthSchema, "ground truth")
}

// LoadPredictions reads a prediction set.
func LoadPredictions(ctx context.Context, path string) ([]model.Prediction, error) {
	return loadFile[model.Prediction](ctx, path, predictionSchema, "predictions")
}
