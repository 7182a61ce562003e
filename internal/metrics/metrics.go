// Package metrics defines the Prometheus collectors for discovery,
// enrichment and research backend calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ari"

// Research call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeRateLimited = "rate_limited"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
//
// Metrics:
//   - ari_discovery_runs_total{status}
//   - ari_enrichment_runs_total{status}
//   - ari_enrichment_agents_total{status}
//   - ari_research_calls_total{provider,task,outcome}
//   - ari_research_call_duration_seconds{provider,task}
//   - ari_research_tokens_total{direction}
//   - ari_jobs_in_flight
//   - ari_http_requests_total{code,method,path}
//   - ari_http_request_duration_seconds{code,method,path}
type Metrics struct {
	DiscoveryRuns    *prometheus.CounterVec
	EnrichmentRuns   *prometheus.CounterVec
	EnrichmentAgents *prometheus.CounterVec
	ResearchCalls    *prometheus.CounterVec
	ResearchDuration *prometheus.HistogramVec
	ResearchTokens   *prometheus.CounterVec
	JobsInFlight     prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DiscoveryRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_runs_total",
			Help:      "Discovery runs partitioned by final status.",
		}, []string{"status"}),

		EnrichmentRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_runs_total",
			Help:      "Enrichment batches partitioned by final status.",
		}, []string{"status"}),

		EnrichmentAgents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_agents_total",
			Help:      "Agents written back by enrichment, partitioned by enrichment status.",
		}, []string{"status"}),

		ResearchCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_calls_total",
			Help:      "Research backend calls partitioned by provider, task and outcome.",
		}, []string{"provider", "task", "outcome"}),

		ResearchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "research_call_duration_seconds",
			Help:      "Latency of research backend calls.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"provider", "task"}),

		ResearchTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_tokens_total",
			Help:      "Tokens consumed by research calls.",
		}, []string{"direction"}),

		JobsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Background orchestrator jobs currently running.",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests partitioned by status code, method and route pattern.",
		}, []string{"code", "method", "path"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time spent serving HTTP requests.",
			Buckets:   []float64{.005, .025, .1, .5, 1, 5},
		}, []string{"code", "method", "path"}),

		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// DiscoveryRun counts one finished discovery run.
func (m *Metrics) DiscoveryRun(status string) {
	if m == nil {
		return
	}
	m.DiscoveryRuns.WithLabelValues(status).Inc()
}

// EnrichmentRun counts one finished enrichment batch and its per-agent
// outcomes.
func (m *Metrics) EnrichmentRun(status string, completed, failed int) {
	if m == nil {
		return
	}
	m.EnrichmentRuns.WithLabelValues(status).Inc()
	if completed > 0 {
		m.EnrichmentAgents.WithLabelValues("complete").Add(float64(completed))
	}
	if failed > 0 {
		m.EnrichmentAgents.WithLabelValues("failed").Add(float64(failed))
	}
}

// ResearchCall records one backend call.
func (m *Metrics) ResearchCall(provider, task, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResearchCalls.WithLabelValues(provider, task, outcome).Inc()
	m.ResearchDuration.WithLabelValues(provider, task).Observe(d.Seconds())
}

// Tokens adds token usage.
func (m *Metrics) Tokens(input, output int64) {
	if m == nil {
		return
	}
	if input > 0 {
		m.ResearchTokens.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		m.ResearchTokens.WithLabelValues("output").Add(float64(output))
	}
}

// JobStarted and JobFinished track background jobs.
func (m *Metrics) JobStarted() {
	if m != nil {
		m.JobsInFlight.Inc()
	}
}

func (m *Metrics) JobFinished() {
	if m != nil {
		m.JobsInFlight.Dec()
	}
}

// HTTP is chi middleware recording request counts and latency by route
// pattern. Unmatched requests are labelled with an empty path.
func (m *Metrics) HTTP(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			path = rctx.RoutePattern()
		}
		code := strconv.Itoa(ww.Status())
		m.HTTPRequests.WithLabelValues(code, r.Method, path).Inc()
		m.HTTPDuration.WithLabelValues(code, r.Method, path).Observe(time.Since(start).Seconds())
	})
}
