package extract

import (
	"context"

	"github.com/sells-group/newsfacts/internal/model"
)

// Extractor produces one extraction per article. Usage is returned even
// when the output could not be parsed, since the tokens were still billed.
type Extractor interface {
	Extract(ctx context.Context, a model.Article) (*model.Extraction, model.TokenUsage, error)
	// Name is the provider name used for pricing and metadata.
	Name() string
	Model() string
}

// BatchResult is the outcome of one article in a batch submission.
type BatchResult struct {
	Extraction *model.Extraction
	Usage      model.TokenUsage
	Err        error
	// Batched is false for items the provider answered synchronously.
	Batched bool
}

// BatchExtractor is implemented by providers with an asynchronous batch API.
// Articles missing from the returned map were not processed and should be
// retried individually.
type BatchExtractor interface {
	Extractor
	ExtractBatch(ctx context.Context, arts []model.Article) (map[string]BatchResult, error)
}
