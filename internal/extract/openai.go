package extract

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newsfacts/internal/cost"
	"github.com/sells-group/newsfacts/internal/model"
	"github.com/sells-group/newsfacts/pkg/openai"
)

// OpenAIExtractor extracts with an OpenAI chat model using the json_schema
// response format.
type OpenAIExtractor struct {
	client    openai.Client
	model     string
	maxTokens int
	schema    json.RawMessage
	prompter  *Prompter
	parser    *Parser
}

// NewOpenAIExtractor builds an OpenAIExtractor. schema is the strict
// response schema from ExtractionSchema.
func NewOpenAIExtractor(client openai.Client, model string, maxTokens int, schema json.RawMessage, prompter *Prompter, parser *Parser) *OpenAIExtractor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &OpenAIExtractor{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		schema:    schema,
		prompter:  prompter,
		parser:    parser,
	}
}

// Name implements Extractor.
func (e *OpenAIExtractor) Name() string { return cost.ProviderOpenAI }

// Model implements Extractor.
func (e *OpenAIExtractor) Model() string { return e.model }

// Extract implements Extractor.
func (e *OpenAIExtractor) Extract(ctx context.Context, a model.Article) (*model.Extraction, model.TokenUsage, error) {
	p := e.prompter.Build(a.Text)
	req := openai.CompletionRequest{
		Model:     e.model,
		System:    p.System,
		User:      p.User,
		MaxTokens: e.maxTokens,
	}
	if len(e.schema) > 0 {
		req.Schema = &openai.JSONSchema{Name: SchemaName, Schema: e.schema, Strict: true}
	}

	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		return nil, model.TokenUsage{}, eris.Wrapf(err, "extract: openai article %s", a.ID)
	}

	usage := model.TokenUsage{
		InputTokens:     resp.Usage.PromptTokens - resp.Usage.CachedTokens,
		OutputTokens:    resp.Usage.CompletionTokens,
		CacheReadTokens: resp.Usage.CachedTokens,
	}
	if resp.Refusal != "" {
		return nil, usage, eris.Errorf("extract: model refused: %s", resp.Refusal)
	}
	if resp.Truncated() {
		return nil, usage, ErrTruncated
	}
	ext, err := e.parser.Parse(resp.Content)
	return ext, usage, err
}
