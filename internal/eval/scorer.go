package eval

// Score is a precision/recall/F1 triple for one pair of sets.
type Score struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

var (
	perfectScore = Score{Precision: 1, Recall: 1, F1: 1}
	zeroScore    = Score{}
)

// PrecisionRecallF1 compares a predicted set against the truth set.
//
// Both empty scores 1.0 across the board (vacuous agreement). Exactly one side
// empty scores 0.0. The both-empty case must be checked first. It inflates
// corpus means when many articles mention nobody, but historical benchmarks
// depend on it.
func PrecisionRecallF1[T comparable](predicted, truth Set[T]) Score {
	switch {
	case predicted.Len() == 0 && truth.Len() == 0:
		return perfectScore
	case predicted.Len() == 0, truth.Len() == 0:
		return zeroScore
	}

	hits := float64(predicted.Intersect(truth).Len())
	precision := hits / float64(predicted.Len())
	recall := hits / float64(truth.Len())

	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return Score{Precision: precision, Recall: recall, F1: f1}
}

// meanAccumulator averages a stream of scores.
type meanAccumulator struct {
	sum Score
	n   int
}

func (m *meanAccumulator) add(s Score) {
	m.sum.Precision += s.Precision
	m.sum.Recall += s.Recall
	m.sum.F1 += s.F1
	m.n++
}

// mean returns the component-wise mean, or zero when nothing was added.
func (m *meanAccumulator) mean() Score {
	if m.n == 0 {
		return zeroScore
	}
	n := float64(m.n)
	return Score{
		Precision: m.sum.Precision / n,
		Recall:    m.sum.Recall / n,
		F1:        m.sum.F1 / n,
	}
}
