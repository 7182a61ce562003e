package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/activity"
	"github.com/sells-group/agent-research-cli/internal/discovery"
	"github.com/sells-group/agent-research-cli/internal/enrichment"
	"github.com/sells-group/agent-research-cli/internal/export"
	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/progress"
	"github.com/sells-group/agent-research-cli/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: msg})
}

func internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	zap.L().Error("api: "+op, zap.Error(err), zap.String("path", r.URL.Path))
	writeError(w, r, http.StatusInternalServerError, "Internal server error")
}

// acceptedResponse acknowledges a background job.
type acceptedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Input   any    `json:"input"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

type discoveryRequest struct {
	Suburb any `json:"suburb"`
	State  any `json:"state"`
	DryRun any `json:"dryRun"`
}

func (s *Server) runDiscovery(w http.ResponseWriter, r *http.Request) {
	var body discoveryRequest
	if !decodeBody(w, r, &body) {
		return
	}
	suburb, _ := body.Suburb.(string)
	state, _ := body.State.(string)
	dryRun, _ := body.DryRun.(bool)
	suburb, state = strings.TrimSpace(suburb), strings.TrimSpace(state)
	if suburb == "" || state == "" {
		writeError(w, r, http.StatusBadRequest, "suburb and state required")
		return
	}

	sb, err := s.deps.Discovery.Resolve(r.Context(), suburb, state)
	switch {
	case errors.Is(err, discovery.ErrSuburbNotFound):
		writeError(w, r, http.StatusNotFound, "Suburb not found")
		return
	case errors.Is(err, discovery.ErrMissingPostcode), errors.Is(err, discovery.ErrSuburbAbandoned):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		internalError(w, r, "resolve suburb", err)
		return
	}

	in := discovery.Input{Suburb: sb.Name, State: sb.State, DryRun: dryRun}
	err = s.jobs.Go(r.Context(), "discovery", func(ctx context.Context) {
		res, err := s.deps.Discovery.Run(ctx, in)
		if err != nil {
			zap.L().Warn("api: discovery did not run", zap.String("suburb", sb.Slug), zap.Error(err))
			return
		}
		zap.L().Info("api: discovery finished",
			zap.String("run_id", res.RunID),
			zap.String("status", string(res.Status)),
			zap.Int("agencies", res.AgenciesFound),
			zap.Int("agents", res.AgentsFound),
		)
	})
	if err != nil {
		writeError(w, r, http.StatusTooManyRequests, "Too many jobs running")
		return
	}

	msg := "Discovery started"
	if dryRun {
		msg = "Discovery dry-run started"
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, acceptedResponse{Status: "running", Message: msg, Input: in})
}

type enrichmentRequest struct {
	Limit  any `json:"limit"`
	DryRun any `json:"dryRun"`
}

func (s *Server) runEnrichment(w http.ResponseWriter, r *http.Request) {
	var body enrichmentRequest
	if !decodeBody(w, r, &body) {
		return
	}
	limit, ok := positiveNumber(body.Limit)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "limit must be a positive number")
		return
	}
	dryRun, _ := body.DryRun.(bool)

	in := enrichment.Input{Limit: limit, DryRun: dryRun}
	err := s.jobs.Go(r.Context(), "enrichment", func(ctx context.Context) {
		res := s.deps.Enrichment.Run(ctx, in)
		zap.L().Info("api: enrichment finished",
			zap.String("run_id", res.RunID),
			zap.String("status", string(res.Status)),
			zap.Int("completed", res.Completed),
			zap.Int("failed", res.Failed),
		)
	})
	if err != nil {
		writeError(w, r, http.StatusTooManyRequests, "Too many jobs running")
		return
	}

	msg := "Enrichment started"
	if dryRun {
		msg = "Enrichment dry-run started"
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, acceptedResponse{Status: "running", Message: msg, Input: in})
}

// decodeBody reads an optional JSON object body. It writes a 400 and
// returns false when the body is not valid JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, r, http.StatusBadRequest, "invalid JSON body")
	return false
}

// positiveNumber accepts a JSON number or a numeric string and floors it.
func positiveNumber(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(math.Floor(f)), true
}

// queryInt parses a positive integer query parameter. Missing or invalid
// values return 0 and are ignored by the filters.
func queryInt(r *http.Request, key string) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f < 1 || f > math.MaxInt64/2 {
		return 0
	}
	return int64(math.Floor(f))
}

func (s *Server) listSuburbs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SuburbFilter{
		State: q.Get("state"),
		Tier:  int(queryInt(r, "tier")),
		Limit: int(queryInt(r, "limit")),
	}
	if st := model.ScrapeStatus(q.Get("status")); st.Valid() {
		filter.Status = st
	}
	suburbs, err := s.deps.Store.ListSuburbs(r.Context(), filter)
	if err != nil {
		internalError(w, r, "list suburbs", err)
		return
	}
	render.JSON(w, r, nonNil(suburbs))
}

func (s *Server) getSuburb(w http.ResponseWriter, r *http.Request) {
	sb, err := s.deps.Store.GetSuburb(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		internalError(w, r, "get suburb", err)
		return
	}
	if sb == nil {
		writeError(w, r, http.StatusNotFound, "Suburb not found")
		return
	}
	render.JSON(w, r, sb)
}

func (s *Server) retrySuburb(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.deps.Progress.Retry, "Suburb queued for retry")
}

func (s *Server) abandonSuburb(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.deps.Progress.Abandon, "Suburb abandoned")
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) (*model.Suburb, error), msg string) {
	slug := chi.URLParam(r, "slug")
	sb, err := apply(r.Context(), slug)
	switch {
	case errors.Is(err, progress.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Suburb not found")
		return
	case errors.Is(err, progress.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, err.Error())
		return
	case err != nil:
		internalError(w, r, "suburb transition", err)
		return
	}
	s.deps.Feed.Publish(activity.Info, "suburbs", msg, map[string]any{
		"suburb":      sb.Slug,
		"status":      sb.Status,
		"retry_count": sb.RetryCount,
	})
	render.JSON(w, r, sb)
}

func (s *Server) listAgencies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	agencies, err := s.deps.Store.ListAgencies(r.Context(), store.AgencyFilter{
		Suburb:   q.Get("suburb"),
		State:    q.Get("state"),
		Postcode: q.Get("postcode"),
		Limit:    int(queryInt(r, "limit")),
	})
	if err != nil {
		internalError(w, r, "list agencies", err)
		return
	}
	render.JSON(w, r, nonNil(agencies))
}

type agencyResponse struct {
	Agency *model.Agency `json:"agency"`
	Agents []model.Agent `json:"agents"`
}

func (s *Server) agencyWithAgents(w http.ResponseWriter, r *http.Request) (*agencyResponse, bool) {
	agency, err := s.deps.Store.GetAgency(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		internalError(w, r, "get agency", err)
		return nil, false
	}
	if agency == nil {
		writeError(w, r, http.StatusNotFound, "Agency not found")
		return nil, false
	}
	agents, err := s.deps.Store.ListAgents(r.Context(), store.AgentFilter{
		AgencyID: agency.ID,
		Limit:    int(queryInt(r, "limit")),
	})
	if err != nil {
		internalError(w, r, "list agency agents", err)
		return nil, false
	}
	return &agencyResponse{Agency: agency, Agents: nonNil(agents)}, true
}

func (s *Server) getAgency(w http.ResponseWriter, r *http.Request) {
	if resp, ok := s.agencyWithAgents(w, r); ok {
		render.JSON(w, r, resp)
	}
}

func (s *Server) listAgencyAgents(w http.ResponseWriter, r *http.Request) {
	if resp, ok := s.agencyWithAgents(w, r); ok {
		render.JSON(w, r, resp.Agents)
	}
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AgentFilter{
		Suburb:   q.Get("suburb"),
		State:    q.Get("state"),
		AgencyID: queryInt(r, "agency_id"),
		Limit:    int(queryInt(r, "limit")),
	}
	status := q.Get("enrichment_status")
	if status == "" {
		status = q.Get("status")
	}
	if st := model.EnrichmentStatus(status); st.Valid() {
		filter.EnrichmentStatus = st
	}
	agents, err := s.deps.Store.ListAgents(r.Context(), filter)
	if err != nil {
		internalError(w, r, "list agents", err)
		return
	}
	render.JSON(w, r, nonNil(agents))
}

func (s *Server) enrichmentStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Store.CountAgentsByStatus(r.Context())
	if err != nil {
		internalError(w, r, "count agents by status", err)
		return
	}
	render.JSON(w, r, counts)
}

func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.deps.Store.GetAgent(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		internalError(w, r, "get agent", err)
		return
	}
	if agent == nil {
		writeError(w, r, http.StatusNotFound, "Agent not found")
		return
	}
	render.JSON(w, r, agent)
}

type statsResponse struct {
	GeneratedAt         time.Time        `json:"generated_at"`
	Totals              *store.Totals    `json:"totals"`
	SuburbsByStatus     map[string]int   `json:"suburbs_by_status"`
	EnrichmentByStatus  map[string]int   `json:"enrichment_by_status"`
	EnrichmentByQuality map[string]int   `json:"enrichment_by_quality"`
	RecentActivity      []activity.Event `json:"recent_activity"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statsResponse{GeneratedAt: time.Now().UTC()}

	var err error
	if resp.Totals, err = s.deps.Store.Totals(ctx); err != nil {
		internalError(w, r, "totals", err)
		return
	}
	if resp.SuburbsByStatus, err = s.deps.Store.CountSuburbsByStatus(ctx); err != nil {
		internalError(w, r, "count suburbs by status", err)
		return
	}
	if resp.EnrichmentByStatus, err = s.deps.Store.CountAgentsByStatus(ctx); err != nil {
		internalError(w, r, "count agents by status", err)
		return
	}
	if resp.EnrichmentByQuality, err = s.deps.Store.CountAgentsByQuality(ctx); err != nil {
		internalError(w, r, "count agents by quality", err)
		return
	}
	resp.RecentActivity = nonNil(s.deps.Feed.Recent(recentActivity))
	render.JSON(w, r, resp)
}

// exportWorkbook streams the review workbook. The body is buffered so a store error
// can still produce a JSON error response.
func (s *Server) exportWorkbook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := export.Options{State: q.Get("state")}
	if st := model.ScrapeStatus(q.Get("status")); st.Valid() {
		opts.Status = st
	}

	var buf bytes.Buffer
	if err := export.Write(r.Context(), s.deps.Store, opts, &buf); err != nil {
		internalError(w, r, "export", err)
		return
	}
	name := "agent-research-" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// nonNil makes empty lists render as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
