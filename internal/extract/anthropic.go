package extract

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/cost"
	"github.com/sells-group/newsfacts/internal/model"
	"github.com/sells-group/newsfacts/pkg/anthropic"
)

// AnthropicExtractor extracts with Claude. The system prompt is sent as a
// cached block.
type AnthropicExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	cacheTTL  string
	prompter  *Prompter
	parser    *Parser
	poll      anthropic.PollConfig
}

// NewAnthropicExtractor builds an AnthropicExtractor.
func NewAnthropicExtractor(client anthropic.Client, model string, maxTokens int64, prompter *Prompter, parser *Parser) *AnthropicExtractor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicExtractor{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		cacheTTL:  "5m",
		prompter:  prompter,
		parser:    parser,
		poll:      anthropic.DefaultPollConfig(),
	}
}

// WithPollConfig overrides batch polling.
func (e *AnthropicExtractor) WithPollConfig(cfg anthropic.PollConfig) *AnthropicExtractor {
	e.poll = cfg
	return e
}

// WithCacheTTL sets the prompt cache lifetime ("5m" or "1h").
func (e *AnthropicExtractor) WithCacheTTL(ttl string) *AnthropicExtractor {
	if ttl != "" {
		e.cacheTTL = ttl
	}
	return e
}

// Name implements Extractor.
func (e *AnthropicExtractor) Name() string { return cost.ProviderAnthropic }

// Model implements Extractor.
func (e *AnthropicExtractor) Model() string { return e.model }

func (e *AnthropicExtractor) request(a model.Article) anthropic.MessageRequest {
	p := e.prompter.Build(a.Text)
	temp := 0.0
	return anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      anthropic.CachedSystem(p.System, e.cacheTTL),
		Messages:    anthropic.UserPrompt(p.User),
		Temperature: &temp,
	}
}

// Extract implements Extractor.
func (e *AnthropicExtractor) Extract(ctx context.Context, a model.Article) (*model.Extraction, model.TokenUsage, error) {
	resp, err := e.client.CreateMessage(ctx, e.request(a))
	if err != nil {
		return nil, model.TokenUsage{}, eris.Wrapf(err, "extract: anthropic article %s", a.ID)
	}
	return e.decode(resp)
}

func (e *AnthropicExtractor) decode(resp *anthropic.MessageResponse) (*model.Extraction, model.TokenUsage, error) {
	usage := anthropicUsage(resp.Usage)
	if resp.Truncated() {
		return nil, usage, ErrTruncated
	}
	ext, err := e.parser.Parse(resp.Text())
	return ext, usage, err
}

// ExtractBatch implements BatchExtractor. The first article is sent
// directly so the cached system prefix exists before the batch runs.
func (e *AnthropicExtractor) ExtractBatch(ctx context.Context, arts []model.Article) (map[string]BatchResult, error) {
	out := make(map[string]BatchResult, len(arts))
	if len(arts) == 0 {
		return out, nil
	}

	first := arts[0]
	resp, err := anthropic.Prime(ctx, e.client, e.request(first))
	if err != nil {
		// Leave the first article out so the caller retries it directly.
		zap.L().Warn("extract: cache prime failed", zap.Error(err))
	} else {
		ext, usage, perr := e.decode(resp)
		out[first.ID] = BatchResult{Extraction: ext, Usage: usage, Err: perr}
	}

	rest := arts[1:]
	if len(rest) == 0 {
		return out, nil
	}

	items := make([]anthropic.BatchItem, len(rest))
	byCustomID := make(map[string]string, len(rest))
	for i, a := range rest {
		id := fmt.Sprintf("article-%d", i)
		byCustomID[id] = a.ID
		items[i] = anthropic.BatchItem{CustomID: id, Params: e.request(a)}
	}

	batch, err := e.client.CreateBatch(ctx, items)
	if err != nil {
		return out, eris.Wrap(err, "extract: submit batch")
	}
	zap.L().Info("extract: batch submitted",
		zap.String("batch_id", batch.ID),
		zap.Int("requests", len(items)),
	)

	if _, err := anthropic.PollBatch(ctx, e.client, batch.ID, e.poll); err != nil {
		return out, eris.Wrap(err, "extract: wait for batch")
	}

	it, err := e.client.BatchResults(ctx, batch.ID)
	if err != nil {
		return out, eris.Wrap(err, "extract: batch results")
	}
	res, err := anthropic.CollectResults(it)
	if err != nil {
		return out, err
	}

	for cid, msg := range res.Succeeded {
		articleID, ok := byCustomID[cid]
		if !ok {
			continue
		}
		ext, usage, perr := e.decode(msg)
		out[articleID] = BatchResult{Extraction: ext, Usage: usage, Err: perr, Batched: true}
	}
	return out, nil
}

func anthropicUsage(u anthropic.Usage) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:         int(u.InputTokens),
		OutputTokens:        int(u.OutputTokens),
		CacheCreationTokens: int(u.CacheWriteTokens),
		CacheReadTokens:     int(u.CacheReadTokens),
	}
}
