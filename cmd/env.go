package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/activity"
	"github.com/sells-group/agent-research-cli/internal/cost"
	"github.com/sells-group/agent-research-cli/internal/discovery"
	"github.com/sells-group/agent-research-cli/internal/enrichment"
	"github.com/sells-group/agent-research-cli/internal/metrics"
	"github.com/sells-group/agent-research-cli/internal/progress"
	"github.com/sells-group/agent-research-cli/internal/research"
	"github.com/sells-group/agent-research-cli/internal/resilience"
	"github.com/sells-group/agent-research-cli/internal/store"
)

// appEnv holds the store, feed, metrics and orchestrators shared by the
// discover, enrich and serve commands.
type appEnv struct {
	Store      store.Store
	Feed       *activity.Feed
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	Mode       research.Mode
	Discovery  *discovery.Orchestrator
	Enrichment *enrichment.Orchestrator
	Progress   *progress.Tracker
}

// Close releases the store and ends feed subscriptions.
func (e *appEnv) Close() {
	if e.Feed != nil {
		e.Feed.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store and waits for it to answer a ping.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "ari.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	err = resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		JitterFraction: 0.2,
		ShouldRetry:    func(error) bool { return true },
		Name:           "store ping",
	}, st.Ping)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "store ping")
	}
	return st, nil
}

// openStore opens and migrates the store for commands that only read or
// seed it.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates cfg for mode, opens the store and builds both
// orchestrators over one research backend. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	setup, err := research.FromConfig(cfg, m)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	calc := cost.NewCalculator(pricing())
	if calc.Empty() {
		zap.L().Debug("no model pricing configured, cost estimates disabled")
	}

	feed := activity.NewFeed(cfg.Activity.HistorySize)
	env := &appEnv{
		Store:    st,
		Feed:     feed,
		Metrics:  m,
		Registry: reg,
		Mode:     setup.Mode,
		Progress: progress.New(st),
		Discovery: discovery.New(discovery.Config{
			Mode:        setup.Mode,
			MaxAgencies: cfg.Discovery.MaxAgencies,
			Calculator:  calc,
		}, st, setup.Backend, feed, m),
		Enrichment: enrichment.New(enrichment.Config{
			Mode:         setup.Mode,
			DefaultLimit: cfg.Enrichment.DefaultLimit,
			MaxLimit:     cfg.Enrichment.MaxLimit,
			Calculator:   calc,
		}, st, setup.Backend, feed, m),
	}

	zap.L().Info("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("research_mode", string(setup.Mode)),
		zap.String("provider", cfg.Research.Provider),
	)
	return env, nil
}

func pricing() cost.Rates {
	rates := cost.Rates{Models: make(map[string]cost.ModelRate, len(cfg.Pricing.Models))}
	for name, p := range cfg.Pricing.Models {
		rates.Models[name] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	return rates
}
