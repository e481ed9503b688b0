package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/config"
	"github.com/sells-group/newsfacts/internal/cost"
	"github.com/sells-group/newsfacts/internal/extract"
	"github.com/sells-group/newsfacts/internal/resilience"
	"github.com/sells-group/newsfacts/internal/store"
	"github.com/sells-group/newsfacts/internal/taxonomy"
	"github.com/sells-group/newsfacts/pkg/anthropic"
	"github.com/sells-group/newsfacts/pkg/openai"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// initOptionalStore opens the store when one is configured. Run history is
// best effort for the batch commands, so a store that cannot be opened is
// logged and skipped.
func initOptionalStore(ctx context.Context, c *config.Config) store.Store {
	if c.Store.Driver == "" {
		return nil
	}
	st, err := initStore(ctx, c)
	if err != nil {
		zap.L().Warn("run history disabled", zap.String("driver", c.Store.Driver), zap.Error(err))
		return nil
	}
	return st
}

// initExtractor builds the extractor for the configured provider.
func initExtractor(c *config.Config, tx *taxonomy.Taxonomy) (extract.Extractor, error) {
	parser, err := extract.NewParser()
	if err != nil {
		return nil, err
	}
	prompter := extract.NewPrompter(tx)

	warnUnpriced(c)

	switch c.Extract.Provider {
	case cost.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithMaxRetries(0)}
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(c.Anthropic.BaseURL))
		}
		client := anthropic.NewClient(c.Anthropic.Key, opts...)
		return extract.NewAnthropicExtractor(client, c.Anthropic.Model, int64(c.Anthropic.MaxTokens), prompter, parser).
			WithCacheTTL(c.Anthropic.CacheTTL), nil
	case cost.ProviderOpenAI:
		schema, err := extract.ExtractionSchema(tx)
		if err != nil {
			return nil, err
		}
		client := openai.NewClient(c.OpenAI.Key, c.OpenAI.BaseURL, nil)
		return extract.NewOpenAIExtractor(client, c.OpenAI.Model, c.OpenAI.MaxTokens, schema, prompter, parser), nil
	default:
		return nil, eris.Errorf("unknown extract provider %q", c.Extract.Provider)
	}
}

// warnUnpriced logs when the configured model has no pricing entry, in which
// case costs are reported as zero.
func warnUnpriced(c *config.Config) {
	modelName := c.Anthropic.Model
	if c.Extract.Provider == cost.ProviderOpenAI {
		modelName = c.OpenAI.Model
	}
	if !cost.NewCalculator(c.Rates()).Known(c.Extract.Provider, modelName) {
		zap.L().Warn("no pricing for model, costs will read as zero",
			zap.String("provider", c.Extract.Provider),
			zap.String("model", modelName),
		)
	}
}

// runnerConfig maps the extract settings onto a RunnerConfig.
func runnerConfig(c *config.Config) extract.RunnerConfig {
	return extract.RunnerConfig{
		Concurrency:       c.Extract.Concurrency,
		CheckpointEvery:   c.Extract.CheckpointEvery,
		RequestsPerMinute: c.Extract.RequestsPerMinute,
		Retry: resilience.PolicyFrom(
			c.Extract.Retry.MaxAttempts,
			c.Extract.Retry.InitialBackoffMs,
			c.Extract.Retry.MaxBackoffMs,
		),
		Breaker: resilience.BreakerConfigFrom(
			c.Extract.Breaker.FailureThreshold,
			c.Extract.Breaker.ResetTimeoutSecs,
		),
		UseBatch:       c.Extract.Provider == cost.ProviderAnthropic && !c.Anthropic.NoBatch,
		BatchThreshold: c.Anthropic.SmallBatchThreshold,
	}
}
