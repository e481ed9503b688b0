package model

// Article is a single news article as loaded from the raw dataset.
type Article struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Person is a named individual mentioned in an article with the roles
// attributed to them. Roles may be empty but is never null on the wire.
type Person struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Extraction is the structured payload produced for one article.
type Extraction struct {
	People   []Person `json:"people"`
	Topic    string   `json:"topic"`
	Subtopic string   `json:"subtopic"`
	Date     string   `json:"date"`
}

// Prediction is the outcome of one extraction attempt. Extraction is nil
// exactly when Success is false.
type Prediction struct {
	ArticleID  string         `json:"article_id"`
	Success    bool           `json:"success"`
	Extraction *Extraction    `json:"extraction"`
	Error      *string        `json:"error"`
	Metadata   map[string]any `json:"metadata"`
}

// NewSuccess builds a successful prediction. Nil people and role lists are
// replaced with empty ones.
func NewSuccess(articleID string, ext Extraction, metadata map[string]any) Prediction {
	if metadata == nil {
		metadata = map[string]any{}
	}
	people := make([]Person, len(ext.People))
	for i, p := range ext.People {
		if p.Roles == nil {
			p.Roles = []string{}
		}
		people[i] = p
	}
	ext.People = people
	return Prediction{
		ArticleID:  articleID,
		Success:    true,
		Extraction: &ext,
		Metadata:   metadata,
	}
}

// NewFailure builds an unsuccessful prediction carrying the error message.
func NewFailure(articleID string, err error, metadata map[string]any) Prediction {
	if metadata == nil {
		metadata = map[string]any{}
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Prediction{
		ArticleID: articleID,
		Success:   false,
		Error:     &msg,
		Metadata:  metadata,
	}
}

// Scorable reports whether the prediction can take part in evaluation.
func (p Prediction) Scorable() bool {
	return p.Success && p.Extraction != nil
}

// ErrorMessage returns the failure message or "".
func (p Prediction) ErrorMessage() string {
	if p.Error == nil {
		return ""
	}
	return *p.Error
}

// GroundTruth is a human-annotated reference record for one article.
type GroundTruth struct {
	UUID     string   `json:"uuid"`
	People   []Person `json:"people"`
	Topic    string   `json:"topic"`
	Subtopic string   `json:"subtopic"`
}

// CountSuccessful returns the number of successful predictions.
func CountSuccessful(preds []Prediction) int {
	n := 0
	for _, p := range preds {
		if p.Success {
			n++
		}
	}
	return n
}
