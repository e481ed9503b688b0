// Package anthropic wraps anthropic-sdk-go with the message and Message
// Batches calls used for article extraction.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/jsonl"
	"github.com/rotisserie/eris"
)

// Client is the subset of the Anthropic API the extractor uses.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
	CreateBatch(ctx context.Context, items []BatchItem) (*Batch, error)
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	BatchResults(ctx context.Context, batchID string) (ResultIterator, error)
}

// ResultIterator streams the results of an ended batch.
type ResultIterator interface {
	Next() bool
	Result() BatchResult
	Err() error
	Close() error
}

// MessageRequest describes one Messages API call.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Messages    []Message
	Temperature *float64
}

// SystemBlock is a system prompt block, optionally marked as a cache
// breakpoint.
type SystemBlock struct {
	Text     string
	CacheTTL string // "", "5m" or "1h"; empty means not cached
}

// Message is a single conversational turn.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// UserPrompt builds a request body with a single user turn.
func UserPrompt(text string) []Message {
	return []Message{{Role: "user", Content: text}}
}

// MessageResponse is the part of a Messages API reply the extractor reads.
type MessageResponse struct {
	ID         string
	Model      string
	Blocks     []ContentBlock
	StopReason string
	Usage      Usage
}

// ContentBlock is one block of response content.
type ContentBlock struct {
	Type string
	Text string
}

// Text concatenates the text blocks of the response.
func (r *MessageResponse) Text() string {
	var b strings.Builder
	for _, blk := range r.Blocks {
		if blk.Type == "text" {
			b.WriteString(blk.Text)
		}
	}
	return b.String()
}

// Truncated reports whether generation stopped at the token limit.
func (r *MessageResponse) Truncated() bool {
	return r.StopReason == string(sdk.StopReasonMaxTokens)
}

// Usage is the token accounting of one call.
type Usage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// Option configures the SDK-backed client.
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(url string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithBaseURL(url)) }
}

// WithMaxRetries sets the SDK's own retry count. Extraction retries in
// internal/resilience and passes 0.
func WithMaxRetries(n int) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithMaxRetries(n)) }
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a Client backed by the official SDK.
func NewClient(apiKey string, opts ...Option) Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &sdkClient{client: sdk.NewClient(reqOpts...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if len(req.System) > 0 {
		params.System = toSDKSystem(req.System)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return fromSDKMessage(msg), nil
}

func (c *sdkClient) CreateBatch(ctx context.Context, items []BatchItem) (*Batch, error) {
	reqs := make([]sdk.MessageBatchNewParamsRequest, len(items))
	for i, it := range items {
		p := sdk.MessageBatchNewParamsRequestParams{
			Model:     sdk.Model(it.Params.Model),
			MaxTokens: it.Params.MaxTokens,
			Messages:  toSDKMessages(it.Params.Messages),
		}
		if len(it.Params.System) > 0 {
			p.System = toSDKSystem(it.Params.System)
		}
		if it.Params.Temperature != nil {
			p.Temperature = sdk.Float(*it.Params.Temperature)
		}
		reqs[i] = sdk.MessageBatchNewParamsRequest{CustomID: it.CustomID, Params: p}
	}

	b, err := c.client.Messages.Batches.New(ctx, sdk.MessageBatchNewParams{Requests: reqs})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create batch")
	}
	return fromSDKBatch(b), nil
}

func (c *sdkClient) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	b, err := c.client.Messages.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, eris.Wrapf(err, "anthropic: get batch %s", batchID)
	}
	return fromSDKBatch(b), nil
}

func (c *sdkClient) BatchResults(ctx context.Context, batchID string) (ResultIterator, error) {
	stream := c.client.Messages.Batches.ResultsStreaming(ctx, batchID)
	if err := stream.Err(); err != nil {
		return nil, eris.Wrapf(err, "anthropic: batch results %s", batchID)
	}
	return &streamIterator{stream: stream}, nil
}

type streamIterator struct {
	stream *jsonl.Stream[sdk.MessageBatchIndividualResponse]
	cur    BatchResult
}

func (it *streamIterator) Next() bool {
	if !it.stream.Next() {
		return false
	}
	resp := it.stream.Current()
	it.cur = BatchResult{CustomID: resp.CustomID, Type: resp.Result.Type}
	if resp.Result.Type == "succeeded" {
		msg := resp.Result.Message
		it.cur.Message = fromSDKMessage(&msg)
	}
	return true
}

func (it *streamIterator) Result() BatchResult { return it.cur }

func (it *streamIterator) Err() error { return it.stream.Err() }

func (it *streamIterator) Close() error { return it.stream.Close() }

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out[i] = sdk.NewAssistantMessage(block)
			continue
		}
		out[i] = sdk.NewUserMessage(block)
	}
	return out
}

func toSDKSystem(blocks []SystemBlock) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, len(blocks))
	for i, b := range blocks {
		out[i] = sdk.TextBlockParam{Text: b.Text}
		if b.CacheTTL != "" {
			cc := sdk.NewCacheControlEphemeralParam()
			cc.TTL = sdk.CacheControlEphemeralTTL(b.CacheTTL)
			out[i].CacheControl = cc
		}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		blocks = append(blocks, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Blocks:     blocks,
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:      msg.Usage.InputTokens,
			OutputTokens:     msg.Usage.OutputTokens,
			CacheWriteTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadTokens:  msg.Usage.CacheReadInputTokens,
		},
	}
}

func fromSDKBatch(b *sdk.MessageBatch) *Batch {
	return &Batch{
		ID:     b.ID,
		Status: string(b.ProcessingStatus),
		Counts: BatchCounts{
			Processing: b.RequestCounts.Processing,
			Succeeded:  b.RequestCounts.Succeeded,
			Errored:    b.RequestCounts.Errored,
			Canceled:   b.RequestCounts.Canceled,
			Expired:    b.RequestCounts.Expired,
		},
	}
}
