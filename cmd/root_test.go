package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/newsfacts/internal/config"
	"github.com/sells-group/newsfacts/internal/extract"
	"github.com/sells-group/newsfacts/internal/taxonomy"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"extract", "evaluate", "preprocess", "stats", "runs", "serve", "fetch"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "newsfacts", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestExtractCommand_Flags(t *testing.T) {
	for _, name := range []string{"articles", "ground-truth", "output", "limit", "resume", "provider", "no-batch"} {
		assert.NotNil(t, extractCmd.Flags().Lookup(name), "extract should have --%s flag", name)
	}
	assert.Equal(t, "0", extractCmd.Flags().Lookup("limit").DefValue)
}

func TestEvaluateCommand_Flags(t *testing.T) {
	for _, name := range []string{"predictions", "ground-truth", "report", "xlsx", "csv", "no-save"} {
		assert.NotNil(t, evaluateCmd.Flags().Lookup(name), "evaluate should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "report", "stats", "check"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestInitExtractor(t *testing.T) {
	tx := taxonomy.Default()

	t.Run("anthropic", func(t *testing.T) {
		c := &config.Config{
			Extract:   config.ExtractConfig{Provider: "anthropic"},
			Anthropic: config.AnthropicConfig{Key: "sk-test", Model: "claude-3-5-haiku-20241022", MaxTokens: 1024, CacheTTL: "1h"},
		}
		ext, err := initExtractor(c, tx)
		require.NoError(t, err)
		assert.Equal(t, "anthropic", ext.Name())
		assert.Equal(t, "claude-3-5-haiku-20241022", ext.Model())
		_, ok := ext.(extract.BatchExtractor)
		assert.True(t, ok)
	})

	t.Run("openai", func(t *testing.T) {
		c := &config.Config{
			Extract: config.ExtractConfig{Provider: "openai"},
			OpenAI:  config.OpenAIConfig{Key: "sk-test", Model: "gpt-4o-mini", MaxTokens: 1024},
		}
		ext, err := initExtractor(c, tx)
		require.NoError(t, err)
		assert.Equal(t, "openai", ext.Name())
		assert.Equal(t, "gpt-4o-mini", ext.Model())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := initExtractor(&config.Config{Extract: config.ExtractConfig{Provider: "cohere"}}, tx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cohere")
	})
}

func TestRunnerConfig(t *testing.T) {
	c := &config.Config{
		Extract: config.ExtractConfig{
			Provider:          "anthropic",
			Concurrency:       8,
			CheckpointEvery:   25,
			RequestsPerMinute: 120,
			Retry:             config.RetryConfig{MaxAttempts: 4, InitialBackoffMs: 500, MaxBackoffMs: 8000},
			Breaker:           config.BreakerConfig{FailureThreshold: 3, ResetTimeoutSecs: 10},
		},
		Anthropic: config.AnthropicConfig{SmallBatchThreshold: 5},
	}

	rc := runnerConfig(c)
	assert.Equal(t, 8, rc.Concurrency)
	assert.Equal(t, 25, rc.CheckpointEvery)
	assert.Equal(t, 120, rc.RequestsPerMinute)
	assert.Equal(t, 4, rc.Retry.MaxAttempts)
	assert.Equal(t, 3, rc.Breaker.FailureThreshold)
	assert.True(t, rc.UseBatch)
	assert.Equal(t, 5, rc.BatchThreshold)

	c.Anthropic.NoBatch = true
	assert.False(t, runnerConfig(c).UseBatch)

	c.Extract.Provider = "openai"
	c.Anthropic.NoBatch = false
	assert.False(t, runnerConfig(c).UseBatch)
}

func TestInitOptionalStore(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, initOptionalStore(ctx, &config.Config{}))

	bad := &config.Config{Store: config.StoreConfig{Driver: "mysql", DatabaseURL: "x"}}
	assert.Nil(t, initOptionalStore(ctx, bad))

	ok := &config.Config{Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: t.TempDir() + "/runs.db"}}
	st := initOptionalStore(ctx, ok)
	require.NotNil(t, st)
	assert.NoError(t, st.Close())
}
