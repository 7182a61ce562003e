package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "ari.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Server.MaxConcurrentJobs)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "anthropic", cfg.Research.Provider)
	assert.False(t, cfg.Research.FixtureMode)
	assert.Equal(t, 300, cfg.Research.TimeoutSecs)
	assert.Equal(t, 30, cfg.Research.RatePerMinute)
	assert.Equal(t, 20, cfg.Discovery.MaxAgencies)
	assert.Equal(t, 10, cfg.Enrichment.DefaultLimit)
	assert.Equal(t, 50, cfg.Enrichment.MaxLimit)
	assert.Equal(t, 200, cfg.Activity.HistorySize)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "https://api.perplexity.ai", cfg.Perplexity.BaseURL)
	assert.Equal(t, int64(8192), cfg.Anthropic.MaxTokens)
	assert.Empty(t, cfg.Catalog.Path)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/ari
log:
  level: debug
  format: console
server:
  port: 9090
research:
  fixture_mode: true
pricing:
  models:
    claude-sonnet-4-5-20250929:
      input: 3
      output: 15
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/ari", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Research.FixtureMode)
	require.Contains(t, cfg.Pricing.Models, "claude-sonnet-4-5-20250929")
	assert.InDelta(t, 15.0, cfg.Pricing.Models["claude-sonnet-4-5-20250929"].Output, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 20, cfg.Discovery.MaxAgencies)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ARI_STORE_DRIVER", "postgres")
	t.Setenv("ARI_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ARI_SERVER_PORT", "3000")
	t.Setenv("ARI_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
	assert.True(t, cfg.HasResearchCredential())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "ari.db"
	cfg.Research.Provider = "anthropic"
	cfg.Research.TimeoutSecs = 300
	cfg.Discovery.MaxAgencies = 20
	cfg.Enrichment.DefaultLimit = 10
	cfg.Enrichment.MaxLimit = 50
	cfg.Server.Port = 8080
	cfg.Server.MaxConcurrentJobs = 4
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"store", "discover", "enrich", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_StoreMissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_ResearchProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Research.Provider = "openai"

	err := cfg.Validate("discover")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "research.provider")

	// store mode does not care about research settings
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidate_EnrichmentLimits(t *testing.T) {
	cfg := validDefaults()
	cfg.Enrichment.DefaultLimit = 60

	err := cfg.Validate("enrich")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "enrichment.default_limit")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_JobBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Server.MaxConcurrentJobs = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_jobs must be between 1 and 64")

	cfg.Server.MaxConcurrentJobs = 64
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestHasResearchCredential(t *testing.T) {
	cfg := validDefaults()
	assert.False(t, cfg.HasResearchCredential())

	cfg.Research.Provider = "perplexity"
	cfg.Anthropic.Key = "sk-ant"
	assert.False(t, cfg.HasResearchCredential())

	cfg.Perplexity.Key = "pplx"
	assert.True(t, cfg.HasResearchCredential())
}
