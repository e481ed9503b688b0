// Package openai wraps go-openai with the single structured-output chat call
// used for article extraction.
package openai

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	goopenai "github.com/sashabaranov/go-openai"
)

// Client runs one chat completion.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is a system + user prompt pair with an optional JSON
// schema the reply must satisfy.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	Schema      *JSONSchema
}

// JSONSchema names a schema for the json_schema response format.
type JSONSchema struct {
	Name   string
	Schema json.RawMessage
	Strict bool
}

// CompletionResponse is the first choice of a chat completion.
type CompletionResponse struct {
	ID           string
	Model        string
	Content      string
	Refusal      string
	FinishReason string
	Usage        Usage
}

// Truncated reports whether generation stopped at the token limit.
func (r *CompletionResponse) Truncated() bool {
	return r.FinishReason == string(goopenai.FinishReasonLength)
}

// Usage is the token accounting of one call. PromptTokens includes
// CachedTokens.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
	TotalTokens      int
}

type sdkClient struct {
	client *goopenai.Client
}

// NewClient creates a Client. baseURL and hc are optional.
func NewClient(apiKey, baseURL string, hc *http.Client) Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return &sdkClient{client: goopenai.NewClientWithConfig(cfg)}
}

func (c *sdkClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	chat := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
			{Role: goopenai.ChatMessageRoleUser, Content: req.User},
		},
	}
	if req.Schema != nil {
		chat.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Schema,
				Strict: req.Schema.Strict,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return nil, eris.Wrap(err, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: chat completion returned no choices")
	}

	choice := resp.Choices[0]
	out := &CompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		Refusal:      choice.Message.Refusal,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if d := resp.Usage.PromptTokensDetails; d != nil {
		out.Usage.CachedTokens = d.CachedTokens
	}
	return out, nil
}
