// Package api serves the HTTP trigger layer: job endpoints for discovery
// and enrichment, read-only views over the store, pipeline stats and the
// live activity stream.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/agent-research-cli/internal/activity"
	"github.com/sells-group/agent-research-cli/internal/discovery"
	"github.com/sells-group/agent-research-cli/internal/enrichment"
	"github.com/sells-group/agent-research-cli/internal/metrics"
	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/store"
)

const (
	defaultKeepAlive = 15 * time.Second
	recentActivity   = 20
)

// Discoverer runs suburb discovery.
type Discoverer interface {
	Resolve(ctx context.Context, suburb, state string) (*model.Suburb, error)
	Run(ctx context.Context, in discovery.Input) (*discovery.Result, error)
}

// Enricher runs agent enrichment batches.
type Enricher interface {
	Run(ctx context.Context, in enrichment.Input) *enrichment.Result
}

// Progress applies manual suburb transitions.
type Progress interface {
	Retry(ctx context.Context, slug string) (*model.Suburb, error)
	Abandon(ctx context.Context, slug string) (*model.Suburb, error)
}

// Config holds server settings.
type Config struct {
	MaxConcurrentJobs int
	CORSOrigins       []string
	// KeepAlive is the interval between SSE comment frames.
	KeepAlive time.Duration
}

// Deps are the components the handlers call into. Feed and Metrics may be
// nil.
type Deps struct {
	Store      store.Store
	Discovery  Discoverer
	Enrichment Enricher
	Progress   Progress
	Feed       *activity.Feed
	Metrics    *metrics.Metrics
}

// Server owns the router and the background job runner.
type Server struct {
	cfg  Config
	deps Deps
	jobs *Jobs
}

// New creates a Server.
func New(cfg Config, deps Deps) *Server {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if deps.Feed == nil {
		deps.Feed = activity.NewFeed(activity.DefaultHistorySize)
	}
	return &Server{
		cfg:  cfg,
		deps: deps,
		jobs: NewJobs(cfg.MaxConcurrentJobs, deps.Metrics),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(
		s.deps.Metrics.HTTP,
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
		middleware.Recoverer,
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/discovery/run", s.runDiscovery)
		r.Post("/enrichment/run", s.runEnrichment)

		r.Get("/suburbs", s.listSuburbs)
		r.Get("/suburbs/{slug}", s.getSuburb)
		r.Post("/suburbs/{slug}/retry", s.retrySuburb)
		r.Post("/suburbs/{slug}/abandon", s.abandonSuburb)

		r.Get("/agencies", s.listAgencies)
		r.Get("/agencies/{slug}", s.getAgency)
		r.Get("/agencies/{slug}/agents", s.listAgencyAgents)

		r.Get("/agents", s.listAgents)
		r.Get("/agents/enrichment-status", s.enrichmentStatus)
		r.Get("/agents/{slug}", s.getAgent)

		r.Get("/stats", s.stats)
		r.Get("/export", s.exportWorkbook)
		r.Get("/events", s.events)
	})
	return r
}

// Shutdown waits for background jobs to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.jobs.Wait(ctx)
}
