package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/newsfacts/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Eval       EvalConfig       `yaml:"eval" mapstructure:"eval"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the run history backend. An empty driver disables
// run history.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                 string `yaml:"key" mapstructure:"key"`
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	Model               string `yaml:"model" mapstructure:"model"`
	MaxTokens           int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	CacheTTL            string `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	NoBatch             bool   `yaml:"no_batch" mapstructure:"no_batch"`
	SmallBatchThreshold int    `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ExtractConfig configures the extraction runner.
type ExtractConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"`
	Concurrency       int           `yaml:"concurrency" mapstructure:"concurrency"`
	CheckpointEvery   int           `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	RequestsPerMinute int           `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	TaxonomyPath      string        `yaml:"taxonomy_path" mapstructure:"taxonomy_path"`
	Retry             RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker           BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// RetryConfig configures retries of transient provider errors.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BreakerConfig configures the provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// EvalConfig configures evaluation output.
type EvalConfig struct {
	ReportPath string `yaml:"report_path" mapstructure:"report_path"`
	SaveReport bool   `yaml:"save_report" mapstructure:"save_report"`
}

// DataConfig holds the default dataset locations.
type DataConfig struct {
	ArticlesPath    string `yaml:"articles_path" mapstructure:"articles_path"`
	GroundTruthPath string `yaml:"ground_truth_path" mapstructure:"ground_truth_path"`
	PredictionsPath string `yaml:"predictions_path" mapstructure:"predictions_path"`
	OutputDir       string `yaml:"output_dir" mapstructure:"output_dir"`
}

// ServerConfig configures the HTTP evaluation service.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures run-health alerting. A zero threshold
// disables its check.
type MonitoringConfig struct {
	Enabled                     bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL                  string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs           int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours         int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold        float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ArticleFailureRateThreshold float64 `yaml:"article_failure_rate_threshold" mapstructure:"article_failure_rate_threshold"`
	CostThresholdUSD            float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	MinEntityF1                 float64 `yaml:"min_entity_f1" mapstructure:"min_entity_f1"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NEWSFACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/newsfacts.db")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("anthropic.no_batch", false)
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("extract.provider", cost.ProviderOpenAI)
	v.SetDefault("extract.concurrency", 5)
	v.SetDefault("extract.checkpoint_every", 10)
	v.SetDefault("extract.requests_per_minute", 0)
	v.SetDefault("extract.taxonomy_path", "")
	v.SetDefault("extract.retry.max_attempts", 3)
	v.SetDefault("extract.retry.initial_backoff_ms", 1000)
	v.SetDefault("extract.retry.max_backoff_ms", 30000)
	v.SetDefault("extract.breaker.failure_threshold", 5)
	v.SetDefault("extract.breaker.reset_timeout_secs", 30)
	v.SetDefault("eval.report_path", "results/evaluation_report.json")
	v.SetDefault("eval.save_report", true)
	v.SetDefault("data.articles_path", "data/raw/articles.json")
	v.SetDefault("data.ground_truth_path", "data/ground_truth/gt.json")
	v.SetDefault("data.predictions_path", "data/predictions/predictions.json")
	v.SetDefault("data.output_dir", "data/processed")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.article_failure_rate_threshold", 0.20)
	v.SetDefault("monitoring.cost_threshold_usd", 0.0)
	v.SetDefault("monitoring.min_entity_f1", 0.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs and reports every problem
// at once. mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "extract":
		switch c.Extract.Provider {
		case cost.ProviderAnthropic:
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required")
			}
		case cost.ProviderOpenAI:
			if c.OpenAI.Key == "" {
				errs = append(errs, "openai.key is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("extract.provider %q is not one of anthropic, openai", c.Extract.Provider))
		}
		if c.Extract.Concurrency < 1 || c.Extract.Concurrency > 50 {
			errs = append(errs, "extract.concurrency must be between 1 and 50")
		}
		if c.Extract.CheckpointEvery < 1 {
			errs = append(errs, "extract.checkpoint_every must be > 0")
		}
		if c.Extract.RequestsPerMinute < 0 {
			errs = append(errs, "extract.requests_per_minute must be >= 0")
		}
	case "evaluate", "preprocess", "stats", "fetch":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.storeErrors(true)...)
	case "runs":
		errs = append(errs, c.storeErrors(true)...)
		if c.Monitoring.LookbackWindowHours < 0 {
			errs = append(errs, "monitoring.lookback_window_hours must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "serve" && mode != "runs" {
		errs = append(errs, c.storeErrors(false)...)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) storeErrors(required bool) []string {
	if c.Store.Driver == "" {
		if required {
			return []string{"store.driver is required"}
		}
		return nil
	}
	var errs []string
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

// Rates returns the default pricing with any configured models layered on
// top.
func (c *Config) Rates() cost.Rates {
	rates := cost.DefaultRates()
	for name, r := range c.Pricing.Anthropic {
		rates.Anthropic[name] = r
	}
	for name, r := range c.Pricing.OpenAI {
		rates.OpenAI[name] = r
	}
	return rates
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
