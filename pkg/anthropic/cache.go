package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
)

// CachedSystem returns a single system block marked as a cache breakpoint.
// The extraction system prompt is identical across articles, so every call
// after the first reads it from the prompt cache.
func CachedSystem(text, ttl string) []SystemBlock {
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{{Text: text, CacheTTL: ttl}}
}

// Prime sends req once so the cached system prefix is written before a
// batch fans out. The response is returned for its usage numbers.
func Prime(ctx context.Context, client Client, req MessageRequest) (*MessageResponse, error) {
	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: prime cache")
	}
	return resp, nil
}
