package eval

import (
	"github.com/sells-group/newsfacts/internal/model"
)

// TopicDetail records one matched article's topic comparison with the raw,
// un-normalized labels on both sides.
type TopicDetail struct {
	ArticleID     string `json:"article_id"`
	PredTopic     string `json:"pred_topic"`
	GTTopic       string `json:"gt_topic"`
	PredSubtopic  string `json:"pred_subtopic"`
	GTSubtopic    string `json:"gt_subtopic"`
	TopicMatch    bool   `json:"topic_match"`
	SubtopicMatch bool   `json:"subtopic_match"`
}

// TopicMetrics are topic/subtopic accuracies plus the per-article trail.
type TopicMetrics struct {
	TopicAccuracy    float64       `json:"topic_accuracy"`
	SubtopicAccuracy float64       `json:"subtopic_accuracy"`
	TotalMatched     int           `json:"total_matched"`
	Details          []TopicDetail `json:"topic_details"`
}

// EvaluateTopics compares topic and subtopic labels by exact match after
// normalization. Labels outside the taxonomy simply fail to match. Details
// keep prediction order.
func EvaluateTopics(predictions []model.Prediction, truth []model.GroundTruth) TopicMetrics {
	return evaluateTopics(match(predictions, NewIndex(truth)))
}

func evaluateTopics(pairs []matchedPair) TopicMetrics {
	out := TopicMetrics{Details: make([]TopicDetail, 0, len(pairs))}

	var topicOK, subtopicOK int
	for _, mp := range pairs {
		d := TopicDetail{
			ArticleID:    mp.articleID,
			PredTopic:    mp.pred.Topic,
			GTTopic:      mp.truth.Topic,
			PredSubtopic: mp.pred.Subtopic,
			GTSubtopic:   mp.truth.Subtopic,
		}
		d.TopicMatch = Normalize(d.PredTopic) == Normalize(d.GTTopic)
		d.SubtopicMatch = Normalize(d.PredSubtopic) == Normalize(d.GTSubtopic)
		if d.TopicMatch {
			topicOK++
		}
		if d.SubtopicMatch {
			subtopicOK++
		}
		out.Details = append(out.Details, d)
	}

	out.TotalMatched = len(pairs)
	if out.TotalMatched > 0 {
		out.TopicAccuracy = float64(topicOK) / float64(out.TotalMatched)
		out.SubtopicAccuracy = float64(subtopicOK) / float64(out.TotalMatched)
	}
	return out
}
