package eval

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/dataset"
	"github.com/sells-group/newsfacts/internal/model"
)

// ErrMalformedInput is returned when an input record violates the shape the
// evaluator relies on. Scoring never runs on partially valid input.
var ErrMalformedInput = eris.New("eval: malformed input")

// PersistError reports that the report could not be written. The computed
// Result is still valid when this is returned.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("eval: write report %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Summary holds the four headline numbers.
type Summary struct {
	EntityF1         float64 `json:"entity_f1"`
	RoleF1           float64 `json:"role_f1"`
	TopicAccuracy    float64 `json:"topic_accuracy"`
	SubtopicAccuracy float64 `json:"subtopic_accuracy"`
}

// Result is the full evaluation of one prediction set.
type Result struct {
	EntityMetrics EntityMetrics `json:"entity_metrics"`
	TopicMetrics  TopicMetrics  `json:"topic_metrics"`
	Summary       Summary       `json:"summary"`

	// Coverage is the share of ground-truth records that were scored.
	Coverage float64 `json:"-"`
}

// Metrics flattens the scalar metrics for run summaries.
func (r *Result) Metrics() map[string]float64 {
	return map[string]float64{
		"entity_precision":  r.EntityMetrics.EntityPrecision,
		"entity_recall":     r.EntityMetrics.EntityRecall,
		"entity_f1":         r.EntityMetrics.EntityF1,
		"role_precision":    r.EntityMetrics.RolePrecision,
		"role_recall":       r.EntityMetrics.RoleRecall,
		"role_f1":           r.EntityMetrics.RoleF1,
		"topic_accuracy":    r.TopicMetrics.TopicAccuracy,
		"subtopic_accuracy": r.TopicMetrics.SubtopicAccuracy,
		"coverage":          r.Coverage,
	}
}

// Run evaluates predictions against ground truth. Unsuccessful predictions
// and predictions without ground truth are excluded silently; structurally
// invalid records abort with ErrMalformedInput.
func Run(predictions []model.Prediction, truth []model.GroundTruth) (*Result, error) {
	if err := validate(predictions, truth); err != nil {
		return nil, err
	}

	idx := NewIndex(truth)
	pairs := match(predictions, idx)

	res := &Result{
		EntityMetrics: evaluateEntities(pairs),
		TopicMetrics:  evaluateTopics(pairs),
		Coverage:      idx.Coverage(len(pairs)),
	}
	res.Summary = Summary{
		EntityF1:         res.EntityMetrics.EntityF1,
		RoleF1:           res.EntityMetrics.RoleF1,
		TopicAccuracy:    res.TopicMetrics.TopicAccuracy,
		SubtopicAccuracy: res.TopicMetrics.SubtopicAccuracy,
	}

	zap.L().Info("eval: complete",
		zap.Int("predictions", len(predictions)),
		zap.Int("ground_truth", idx.Len()),
		zap.Int("matched", res.TopicMetrics.TotalMatched),
		zap.Float64("coverage", res.Coverage),
		zap.Float64("entity_f1", res.Summary.EntityF1),
		zap.Float64("role_f1", res.Summary.RoleF1),
		zap.Float64("topic_accuracy", res.Summary.TopicAccuracy),
		zap.Float64("subtopic_accuracy", res.Summary.SubtopicAccuracy),
	)
	return res, nil
}

// RunAndSave runs the evaluation and writes the report to path. A write
// failure is returned as *PersistError together with the computed result.
func RunAndSave(predictions []model.Prediction, truth []model.GroundTruth, path string) (*Result, error) {
	res, err := Run(predictions, truth)
	if err != nil {
		return nil, err
	}
	if err := WriteReport(path, res); err != nil {
		return res, err
	}
	return res, nil
}

// WriteReport writes r as indented JSON. Non-ASCII characters are kept
// literally.
func WriteReport(path string, r *Result) error {
	if err := dataset.WriteJSON(path, r); err != nil {
		return &PersistError{Path: path, Err: err}
	}
	zap.L().Info("eval: report saved", zap.String("path", path))
	return nil
}

func validate(predictions []model.Prediction, truth []model.GroundTruth) error {
	for i, p := range predictions {
		if p.ArticleID == "" {
			return eris.Wrapf(ErrMalformedInput, "prediction %d: missing article_id", i)
		}
		if !p.Success && p.Extraction != nil {
			return eris.Wrapf(ErrMalformedInput, "prediction %d (%s): failed prediction carries an extraction", i, p.ArticleID)
		}
	}
	for i, gt := range truth {
		if gt.UUID == "" {
			return eris.Wrapf(ErrMalformedInput, "ground truth %d: missing uuid", i)
		}
	}
	return nil
}
