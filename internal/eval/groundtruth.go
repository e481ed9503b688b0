package eval

import (
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/model"
)

// Index maps article uuid to its ground-truth record.
type Index map[string]model.GroundTruth

// NewIndex builds an Index. If a uuid appears more than once the last record
// wins; duplicates are an upstream data problem and are only logged.
func NewIndex(truth []model.GroundTruth) Index {
	idx := make(Index, len(truth))
	for _, gt := range truth {
		if _, dup := idx[gt.UUID]; dup {
			zap.L().Debug("eval: duplicate ground truth uuid, keeping last",
				zap.String("uuid", gt.UUID),
			)
		}
		idx[gt.UUID] = gt
	}
	return idx
}

// Lookup returns the record for id.
func (idx Index) Lookup(id string) (model.GroundTruth, bool) {
	gt, ok := idx[id]
	return gt, ok
}

// Len returns the number of distinct uuids.
func (idx Index) Len() int { return len(idx) }

// Coverage is the fraction of ground-truth records that had a matching
// scorable prediction.
func (idx Index) Coverage(matched int) float64 {
	if len(idx) == 0 {
		return 0
	}
	return float64(matched) / float64(len(idx))
}

// matchedPair is a scorable prediction joined with its ground truth.
type matchedPair struct {
	articleID string
	pred      *model.Extraction
	truth     model.GroundTruth
}

// match joins predictions with ground truth in prediction order, dropping
// unsuccessful and unmatched predictions.
func match(predictions []model.Prediction, idx Index) []matchedPair {
	pairs := make([]matchedPair, 0, len(predictions))
	for _, p := range predictions {
		if !p.Scorable() {
			continue
		}
		gt, ok := idx.Lookup(p.ArticleID)
		if !ok {
			continue
		}
		pairs = append(pairs, matchedPair{articleID: p.ArticleID, pred: p.Extraction, truth: gt})
	}
	return pairs
}
