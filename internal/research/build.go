package research

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/config"
	"github.com/sells-group/agent-research-cli/internal/metrics"
	"github.com/sells-group/agent-research-cli/internal/resilience"
	"github.com/sells-group/agent-research-cli/pkg/anthropic"
	"github.com/sells-group/agent-research-cli/pkg/perplexity"
)

// Setup is the resolved research strategy for a process.
type Setup struct {
	Mode    Mode
	Backend Backend
	// Model is the model name used for cost attribution of live calls.
	Model string
}

// FromConfig builds the configured backend wrapped in metrics, breaker,
// timeout and rate limiting. In fixture mode Backend is nil.
func FromConfig(cfg *config.Config, m *metrics.Metrics) (*Setup, error) {
	mode := SelectMode(cfg.Research.FixtureMode, cfg.HasResearchCredential())
	if mode == ModeFixture {
		zap.L().Info("research: using fixtures",
			zap.Bool("fixture_mode", cfg.Research.FixtureMode),
			zap.String("provider", cfg.Research.Provider),
		)
		return &Setup{Mode: mode, Model: "fixture"}, nil
	}

	var (
		base  Backend
		model string
	)
	switch cfg.Research.Provider {
	case "anthropic":
		model = cfg.Anthropic.Model
		base = NewClaudeBackend(anthropic.NewClient(cfg.Anthropic.Key), model, cfg.Anthropic.MaxTokens)
	case "perplexity":
		model = cfg.Perplexity.Model
		base = NewPerplexityBackend(perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		), model)
	default:
		return nil, eris.Errorf("research: unknown provider %q", cfg.Research.Provider)
	}

	bcfg := resilience.NewBreakerConfig(cfg.Research.BreakerFailures, cfg.Research.BreakerResetSecs)
	bcfg.OnStateChange = func(from, to resilience.State) {
		zap.L().Warn("research: circuit breaker state change",
			zap.String("provider", base.Name()),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}

	backend := Chain(base,
		WithMetrics(m),
		WithBreaker(resilience.NewBreaker(bcfg)),
		WithTimeout(time.Duration(cfg.Research.TimeoutSecs)*time.Second),
		WithRateLimit(PerMinute(cfg.Research.RatePerMinute)),
	)
	return &Setup{Mode: mode, Backend: backend, Model: model}, nil
}
