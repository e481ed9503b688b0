package eval

import (
	"github.com/sells-group/newsfacts/internal/model"
)

// EntityMetrics are corpus-level means of per-article entity and role scores.
type EntityMetrics struct {
	EntityPrecision float64 `json:"entity_precision"`
	EntityRecall    float64 `json:"entity_recall"`
	EntityF1        float64 `json:"entity_f1"`
	RolePrecision   float64 `json:"role_precision"`
	RoleRecall      float64 `json:"role_recall"`
	RoleF1          float64 `json:"role_f1"`
}

// EvaluateEntities scores people names and (name, role) attributions for every
// scorable prediction that has ground truth. Failed extractions and unknown
// article ids are excluded rather than counted as zero. With no matched pairs
// every metric is 0.0.
func EvaluateEntities(predictions []model.Prediction, truth []model.GroundTruth) EntityMetrics {
	return evaluateEntities(match(predictions, NewIndex(truth)))
}

func evaluateEntities(pairs []matchedPair) EntityMetrics {
	var entities, roles meanAccumulator
	for _, mp := range pairs {
		entities.add(PrecisionRecallF1(EntitiesOf(mp.pred.People), EntitiesOf(mp.truth.People)))
		roles.add(PrecisionRecallF1(RolePairsOf(mp.pred.People), RolePairsOf(mp.truth.People)))
	}

	e, r := entities.mean(), roles.mean()
	return EntityMetrics{
		EntityPrecision: e.Precision,
		EntityRecall:    e.Recall,
		EntityF1:        e.F1,
		RolePrecision:   r.Precision,
		RoleRecall:      r.Recall,
		RoleF1:          r.F1,
	}
}
