package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Activity   ActivityConfig   `yaml:"activity" mapstructure:"activity"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ResearchConfig selects and guards the research backend.
type ResearchConfig struct {
	Provider         string `yaml:"provider" mapstructure:"provider"`
	FixtureMode      bool   `yaml:"fixture_mode" mapstructure:"fixture_mode"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerMinute    int    `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	BreakerFailures  int    `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// PricingConfig holds per-model token pricing. Rates are optional; without
// them cost estimates are omitted.
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// DiscoveryConfig configures suburb discovery runs.
type DiscoveryConfig struct {
	MaxAgencies int `yaml:"max_agencies" mapstructure:"max_agencies"`
}

// EnrichmentConfig configures agent enrichment batches.
type EnrichmentConfig struct {
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit     int `yaml:"max_limit" mapstructure:"max_limit"`
}

// ServerConfig configures the HTTP trigger server.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	MaxConcurrentJobs int      `yaml:"max_concurrent_jobs" mapstructure:"max_concurrent_jobs"`
	CORSOrigins       []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// ActivityConfig configures the in-memory activity feed.
type ActivityConfig struct {
	HistorySize int `yaml:"history_size" mapstructure:"history_size"`
}

// CatalogConfig points at an optional suburb catalog file. Empty uses the
// embedded catalog.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ARI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ari.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("research.provider", "anthropic")
	v.SetDefault("research.fixture_mode", false)
	v.SetDefault("research.timeout_secs", 300)
	v.SetDefault("research.rate_per_minute", 30)
	v.SetDefault("research.breaker_failures", 5)
	v.SetDefault("research.breaker_reset_secs", 60)
	v.SetDefault("discovery.max_agencies", 20)
	v.SetDefault("enrichment.default_limit", 10)
	v.SetDefault("enrichment.max_limit", 50)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_concurrent_jobs", 4)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("activity.history_size", 200)
	v.SetDefault("catalog.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command depends on. mode is one of
// "serve", "discover", "enrich" or "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	research := func() {
		switch c.Research.Provider {
		case "anthropic", "perplexity":
		default:
			errs = append(errs, fmt.Sprintf("research.provider must be anthropic or perplexity, got %q", c.Research.Provider))
		}
		if c.Research.TimeoutSecs <= 0 {
			errs = append(errs, "research.timeout_secs must be > 0")
		}
	}

	switch mode {
	case "store":
	case "discover":
		research()
		if c.Discovery.MaxAgencies < 1 {
			errs = append(errs, "discovery.max_agencies must be >= 1")
		}
	case "enrich":
		research()
		if c.Enrichment.DefaultLimit < 1 || c.Enrichment.DefaultLimit > c.Enrichment.MaxLimit {
			errs = append(errs, "enrichment.default_limit must be between 1 and enrichment.max_limit")
		}
	case "serve":
		research()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.MaxConcurrentJobs < 1 || c.Server.MaxConcurrentJobs > 64 {
			errs = append(errs, "server.max_concurrent_jobs must be between 1 and 64")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// HasResearchCredential reports whether the selected provider has an API key.
func (c *Config) HasResearchCredential() bool {
	if c.Research.Provider == "perplexity" {
		return c.Perplexity.Key != ""
	}
	return c.Anthropic.Key != ""
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
