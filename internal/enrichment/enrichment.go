// Package enrichment researches pending agents in batches, validates the
// untrusted results and writes them back.
package enrichment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/activity"
	"github.com/sells-group/agent-research-cli/internal/cost"
	"github.com/sells-group/agent-research-cli/internal/metrics"
	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/research"
)

const (
	// DefaultLimit is the batch size used when none is given.
	DefaultLimit = 10
	// MaxLimit caps a single batch.
	MaxLimit = 50

	// MsgNoResult is recorded for claimed agents the backend did not return.
	MsgNoResult = "no enrichment result returned"

	route = "enrichment"
)

// Status is the outcome of one enrichment run.
type Status string

const (
	StatusComplete Status = "complete"
	StatusDryRun   Status = "dry_run"
	StatusFailed   Status = "failed"
)

// Store is the subset of store.Store enrichment needs.
type Store interface {
	ClaimPendingAgents(ctx context.Context, limit int) ([]model.Agent, error)
	UpdateAgentEnrichment(ctx context.Context, id int64, e model.Enrichment) error
	FailAgents(ctx context.Context, ids []int64, message string) error
}

// Input describes one run. A zero Mode uses the orchestrator's default.
type Input struct {
	Limit  int           `json:"limit"`
	DryRun bool          `json:"dryRun"`
	Mode   research.Mode `json:"-"`
}

// Result summarizes one run. Error is set when Status is failed.
type Result struct {
	RunID     string       `json:"run_id"`
	Status    Status       `json:"status"`
	Processed int          `json:"processed"`
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	Cost      cost.Summary `json:"cost"`
	Error     string       `json:"error,omitempty"`
}

// Config holds orchestrator settings.
type Config struct {
	Mode         research.Mode
	DefaultLimit int
	MaxLimit     int
	Calculator   *cost.Calculator
}

// Orchestrator runs enrichment batches. It keeps no state between runs.
type Orchestrator struct {
	cfg     Config
	store   Store
	backend research.Backend
	events  activity.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an Orchestrator. backend may be nil when cfg.Mode is fixture;
// events and m may be nil.
func New(cfg Config, st Store, backend research.Backend, events activity.Publisher, m *metrics.Metrics) *Orchestrator {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = research.ModeFixture
	}
	if events == nil {
		events = activity.Nop{}
	}
	return &Orchestrator{
		cfg:     cfg,
		store:   st,
		backend: backend,
		events:  events,
		metrics: m,
		now:     time.Now,
	}
}

// Limit resolves a requested batch size: non-positive uses the default and
// the result never exceeds the maximum.
func (o *Orchestrator) Limit(n int) int {
	if n <= 0 {
		n = o.cfg.DefaultLimit
	}
	if n > o.cfg.MaxLimit {
		n = o.cfg.MaxLimit
	}
	return n
}

// Run claims up to a batch of pending agents, researches them and writes
// the validated results. It always returns a result; failures are reported
// through Status and Error and recorded on the claimed agents.
func (o *Orchestrator) Run(ctx context.Context, in Input) *Result {
	tracker := cost.NewTracker(o.cfg.Calculator)
	res := &Result{RunID: uuid.NewString()}
	limit := o.Limit(in.Limit)
	mode := in.Mode
	if !mode.Valid() {
		mode = o.cfg.Mode
	}

	log := zap.L().With(zap.String("run_id", res.RunID), zap.Int("limit", limit), zap.String("mode", string(mode)))

	defer func() {
		res.Cost = tracker.Summary()
		o.metrics.EnrichmentRun(string(res.Status), res.Completed, res.Failed)
	}()

	if in.DryRun {
		log.Info("enrichment: dry run")
		o.events.Publish(activity.Info, route, "Enrichment dry run", map[string]any{"run_id": res.RunID, "limit": limit})
		res.Status = StatusDryRun
		return res
	}

	agents, err := o.store.ClaimPendingAgents(ctx, limit)
	if err != nil {
		log.Error("enrichment: claim pending agents", zap.Error(err))
		res.Status = StatusFailed
		res.Error = err.Error()
		o.events.Publish(activity.Error, route, "Enrichment failed to claim agents", map[string]any{"run_id": res.RunID, "error": res.Error})
		return res
	}
	if len(agents) == 0 {
		log.Info("enrichment: no pending agents")
		o.events.Publish(activity.Info, route, "No agents pending enrichment", map[string]any{"run_id": res.RunID})
		res.Status = StatusComplete
		return res
	}

	res.Processed = len(agents)
	log.Info("enrichment: starting", zap.Int("agents", len(agents)))
	o.events.Publish(activity.Info, route, "Enrichment started", map[string]any{"run_id": res.RunID, "agents": len(agents)})

	completed, failed, err := o.process(ctx, mode, agents, tracker)
	if err != nil {
		o.failBatch(ctx, agents, err, res)
		log.Error("enrichment: failed", zap.Error(err))
		return res
	}

	res.Status = StatusComplete
	res.Completed = completed
	res.Failed = failed
	summary := tracker.Summary()
	log.Info("enrichment: complete",
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Int64("input_tokens", summary.InputTokens),
		zap.Int64("output_tokens", summary.OutputTokens),
	)
	o.events.Publish(activity.Success, route, "Enrichment complete", map[string]any{
		"run_id":    res.RunID,
		"processed": res.Processed,
		"completed": completed,
		"failed":    failed,
	})
	return res
}

func (o *Orchestrator) process(ctx context.Context, mode research.Mode, agents []model.Agent, tracker *cost.Tracker) (completed, failed int, err error) {
	records, err := o.records(ctx, mode, agents, tracker)
	if err != nil {
		return 0, 0, err
	}
	validated := Validate(records)

	byDomain := make(map[int64]model.Agent, len(agents))
	for _, a := range agents {
		byDomain[a.DomainID] = a
	}

	now := o.now().UTC()
	written := make(map[int64]bool, len(agents))
	for _, r := range validated.Records {
		agent, ok := byDomain[r.AgentDomainID]
		if !ok {
			zap.L().Debug("enrichment: ignoring record for unselected agent", zap.Int64("agent_domain_id", r.AgentDomainID))
			continue
		}
		if written[agent.ID] {
			continue
		}

		e := toEnrichment(agent, r, now)
		if err := o.store.UpdateAgentEnrichment(ctx, agent.ID, e); err != nil {
			return 0, 0, eris.Wrapf(err, "enrichment: write agent %d", agent.ID)
		}
		written[agent.ID] = true
		if e.Status == model.EnrichmentFailed {
			failed++
		} else {
			completed++
		}
	}

	var missing []int64
	for _, a := range agents {
		if !written[a.ID] {
			missing = append(missing, a.ID)
		}
	}
	if len(missing) > 0 {
		if err := o.store.FailAgents(ctx, missing, MsgNoResult); err != nil {
			return 0, 0, eris.Wrap(err, "enrichment: fail agents without results")
		}
		failed += len(missing)
	}
	return completed, failed, nil
}

func (o *Orchestrator) records(ctx context.Context, mode research.Mode, agents []model.Agent, tracker *cost.Tracker) ([]Record, error) {
	if mode == research.ModeFixture {
		return fixtureRecords(agents), nil
	}
	if o.backend == nil {
		return nil, eris.New("enrichment: live mode without a research backend")
	}

	resp, err := o.backend.Research(ctx, research.Request{
		Task:   research.TaskEnrichment,
		System: systemPrompt,
		Prompt: buildPrompt(agents),
		Schema: batchSchema,
	})
	if err != nil {
		return nil, err
	}
	tracker.Add(resp.Model, resp.Usage)
	return DecodeBatch(resp.Payload)
}

// failBatch marks every claimed agent failed. The write uses a context that
// survives cancellation of ctx so claimed agents are not left in progress.
func (o *Orchestrator) failBatch(ctx context.Context, agents []model.Agent, cause error, res *Result) {
	ids := make([]int64, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	if err := o.store.FailAgents(context.WithoutCancel(ctx), ids, cause.Error()); err != nil {
		zap.L().Error("enrichment: mark batch failed", zap.String("run_id", res.RunID), zap.Error(err))
	}

	res.Status = StatusFailed
	res.Completed = 0
	res.Failed = len(agents)
	res.Error = cause.Error()
	o.events.Publish(activity.Error, route, "Enrichment failed", map[string]any{
		"run_id": res.RunID,
		"agents": len(agents),
		"error":  res.Error,
	})
}

func toEnrichment(a model.Agent, r Record, now time.Time) model.Enrichment {
	bio := r.Bio
	if bio == "" {
		bio = SyntheticBio(a)
	}
	status := model.EnrichmentComplete
	if r.Status == RecordFailed {
		status = model.EnrichmentFailed
	}
	return model.Enrichment{
		Bio:                   bio,
		YearsExperience:       r.YearsExperience,
		YearsExperienceSource: r.YearsExperienceSource,
		CareerStartYear:       r.CareerStartYear,
		Languages:             r.Languages,
		Specializations:       r.Specializations,
		PropertyTypes:         r.PropertyTypes,
		Awards:                r.Awards,
		LinkedInURL:           r.LinkedInURL,
		FacebookURL:           r.FacebookURL,
		InstagramURL:          r.InstagramURL,
		PersonalWebsiteURL:    r.PersonalWebsiteURL,
		Sources:               r.SourcesFound,
		Error:                 r.ErrorMessage,
		Status:                status,
		Quality:               r.Confidence,
		EnrichedAt:            now,
	}
}
