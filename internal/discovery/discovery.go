// Package discovery finds the agencies and agent rosters of one catalog
// suburb, assigns their stable identities and upserts them.
package discovery

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/activity"
	"github.com/sells-group/agent-research-cli/internal/cost"
	"github.com/sells-group/agent-research-cli/internal/identity"
	"github.com/sells-group/agent-research-cli/internal/metrics"
	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/progress"
	"github.com/sells-group/agent-research-cli/internal/research"
	"github.com/sells-group/agent-research-cli/internal/store"
)

const (
	// DefaultMaxAgencies bounds the agencies written per run.
	DefaultMaxAgencies = 20

	// WebsiteBase prefixes backfilled agency websites.
	WebsiteBase = "https://example.com/agency/"

	route = "discovery"

	// backfillLimit is the largest agency list the store returns.
	backfillLimit = 500
)

// Precondition errors. Run returns these without touching storage.
var (
	ErrSuburbNotFound  = eris.New("suburb not found in scrape_progress")
	ErrMissingPostcode = eris.New("suburb is missing postcode")
	ErrSuburbAbandoned = eris.New("suburb is abandoned")
)

// Status is the outcome of one discovery run.
type Status string

const (
	StatusComplete Status = "complete"
	StatusDryRun   Status = "dry_run"
	StatusFailed   Status = "failed"
)

// Store is the subset of store.Store discovery needs.
type Store interface {
	progress.Store
	FindSuburb(ctx context.Context, name, state string) (*model.Suburb, error)
	UpsertAgencyGroup(ctx context.Context, agency *model.Agency, agents []model.Agent) (*store.GroupResult, error)
	ListAgencies(ctx context.Context, filter store.AgencyFilter) ([]model.Agency, error)
	SetAgencyWebsite(ctx context.Context, id int64, website string) error
}

// Input identifies the suburb to discover. A zero Mode uses the
// orchestrator's default.
type Input struct {
	Suburb string        `json:"suburb"`
	State  string        `json:"state"`
	DryRun bool          `json:"dryRun"`
	Mode   research.Mode `json:"-"`
}

// Result summarizes one run. Counts are the stored rows for the suburb after
// a complete run and zero otherwise.
type Result struct {
	RunID         string       `json:"run_id"`
	Status        Status       `json:"status"`
	SuburbSlug    string       `json:"suburb_slug"`
	AgenciesFound int          `json:"agencies_found"`
	AgentsFound   int          `json:"agents_found"`
	Cost          cost.Summary `json:"cost"`
	Error         string       `json:"error,omitempty"`
}

// Config holds orchestrator settings.
type Config struct {
	Mode        research.Mode
	MaxAgencies int
	Calculator  *cost.Calculator
}

// Orchestrator runs discovery for one suburb at a time. It keeps no state
// between runs; concurrent runs for different suburbs are safe.
type Orchestrator struct {
	cfg      Config
	store    Store
	progress *progress.Tracker
	backend  research.Backend
	events   activity.Publisher
	metrics  *metrics.Metrics
}

// New creates an Orchestrator. backend may be nil when cfg.Mode is fixture;
// events and m may be nil.
func New(cfg Config, st Store, backend research.Backend, events activity.Publisher, m *metrics.Metrics) *Orchestrator {
	if cfg.MaxAgencies <= 0 {
		cfg.MaxAgencies = DefaultMaxAgencies
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = research.ModeFixture
	}
	if events == nil {
		events = activity.Nop{}
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		progress: progress.New(st),
		backend:  backend,
		events:   events,
		metrics:  m,
	}
}

// Resolve finds the catalog suburb for a name and state, matched case
// insensitively, and checks it can be discovered.
func (o *Orchestrator) Resolve(ctx context.Context, suburb, state string) (*model.Suburb, error) {
	suburb, state = strings.TrimSpace(suburb), strings.TrimSpace(state)
	if suburb == "" || state == "" {
		return nil, eris.Wrapf(ErrSuburbNotFound, "%s, %s", suburb, state)
	}
	sb, err := o.store.FindSuburb(ctx, suburb, state)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: find suburb")
	}
	if sb == nil {
		return nil, eris.Wrapf(ErrSuburbNotFound, "%s, %s", suburb, state)
	}
	if sb.Postcode == "" {
		return nil, eris.Wrapf(ErrMissingPostcode, "%s, %s", sb.Name, sb.State)
	}
	if sb.Status == model.ScrapeStatusAbandoned {
		return nil, eris.Wrapf(ErrSuburbAbandoned, "%s", sb.Slug)
	}
	return sb, nil
}

// Run discovers one suburb. The error is non-nil only when the suburb fails
// Resolve, in which case nothing was written. Every other failure is
// recorded on the suburb and reported through the result.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Result, error) {
	sb, err := o.Resolve(ctx, in.Suburb, in.State)
	if err != nil {
		return nil, err
	}

	tracker := cost.NewTracker(o.cfg.Calculator)
	res := &Result{RunID: uuid.NewString(), SuburbSlug: sb.Slug}
	mode := in.Mode
	if !mode.Valid() {
		mode = o.cfg.Mode
	}
	log := zap.L().With(zap.String("run_id", res.RunID), zap.String("suburb", sb.Slug), zap.String("mode", string(mode)))

	defer func() {
		res.Cost = tracker.Summary()
		o.metrics.DiscoveryRun(string(res.Status))
	}()

	if in.DryRun {
		log.Info("discovery: dry run")
		o.events.Publish(activity.Info, route, "Discovery dry run", map[string]any{"run_id": res.RunID, "suburb": sb.Slug})
		res.Status = StatusDryRun
		return res, nil
	}

	if err := o.progress.Start(ctx, sb); err != nil {
		log.Error("discovery: start", zap.Error(err))
		res.Status = StatusFailed
		res.Error = err.Error()
		o.events.Publish(activity.Error, route, "Discovery could not start", map[string]any{"run_id": res.RunID, "suburb": sb.Slug, "error": res.Error})
		return res, nil
	}
	log.Info("discovery: starting")
	o.events.Publish(activity.Info, route, "Discovery started", map[string]any{"run_id": res.RunID, "suburb": sb.Slug})

	agencies, agents, err := o.discover(ctx, mode, sb, tracker, log)
	if err != nil {
		o.fail(ctx, sb, err, res)
		log.Error("discovery: failed", zap.Error(err))
		return res, nil
	}

	res.Status = StatusComplete
	res.AgenciesFound = agencies
	res.AgentsFound = agents
	log.Info("discovery: complete", zap.Int("agencies", agencies), zap.Int("agents", agents))
	o.events.Publish(activity.Success, route, "Discovery complete", map[string]any{
		"run_id":   res.RunID,
		"suburb":   sb.Slug,
		"agencies": agencies,
		"agents":   agents,
	})
	return res, nil
}

func (o *Orchestrator) discover(ctx context.Context, mode research.Mode, sb *model.Suburb, tracker *cost.Tracker, log *zap.Logger) (agencies, agents int, err error) {
	raw, err := o.output(ctx, mode, sb, tracker)
	if err != nil {
		return 0, 0, err
	}
	out := raw.Normalize(o.cfg.MaxAgencies)
	log.Info("discovery: research returned",
		zap.String("status", string(out.Status)),
		zap.Int("agencies", len(out.Agencies)),
		zap.Int("dropped_agencies", len(raw.Agencies)-len(out.Agencies)),
		zap.Int("agents", out.AgentCount()),
	)

	for _, a := range out.Agencies {
		agency, roster := toRows(sb, a)
		if _, err := o.store.UpsertAgencyGroup(ctx, agency, roster); err != nil {
			return 0, 0, eris.Wrapf(err, "discovery: write agency %s", agency.Slug)
		}
	}

	if err := o.backfillWebsites(ctx, sb); err != nil {
		return 0, 0, err
	}
	return o.progress.Complete(ctx, sb)
}

func (o *Orchestrator) output(ctx context.Context, mode research.Mode, sb *model.Suburb, tracker *cost.Tracker) (*Output, error) {
	if mode == research.ModeFixture {
		return fixtureOutput(sb), nil
	}
	if o.backend == nil {
		return nil, eris.New("discovery: live mode without a research backend")
	}

	resp, err := o.backend.Research(ctx, research.Request{
		Task:   research.TaskDiscovery,
		System: systemPrompt,
		Prompt: buildPrompt(sb),
		Schema: outputSchema,
	})
	if err != nil {
		return nil, err
	}
	tracker.Add(resp.Model, resp.Usage)
	return DecodeOutput(resp.Payload)
}

// backfillWebsites gives every agency stored for the suburb a website.
func (o *Orchestrator) backfillWebsites(ctx context.Context, sb *model.Suburb) error {
	agencies, err := o.store.ListAgencies(ctx, store.AgencyFilter{Suburb: sb.Name, State: sb.State, Limit: backfillLimit})
	if err != nil {
		return eris.Wrap(err, "discovery: list agencies for backfill")
	}
	for _, a := range agencies {
		if a.Website != "" {
			continue
		}
		if err := o.store.SetAgencyWebsite(ctx, a.ID, WebsiteBase+a.Slug); err != nil {
			return eris.Wrapf(err, "discovery: backfill website %s", a.Slug)
		}
	}
	return nil
}

// fail records err on the suburb. The write survives cancellation of ctx so
// the suburb is not left in progress.
func (o *Orchestrator) fail(ctx context.Context, sb *model.Suburb, cause error, res *Result) {
	if err := o.progress.Fail(context.WithoutCancel(ctx), sb, cause); err != nil {
		zap.L().Error("discovery: mark suburb failed", zap.String("suburb", sb.Slug), zap.Error(err))
	}
	res.Status = StatusFailed
	res.AgenciesFound = 0
	res.AgentsFound = 0
	res.Error = cause.Error()
	o.events.Publish(activity.Error, route, "Discovery failed", map[string]any{
		"run_id": res.RunID,
		"suburb": sb.Slug,
		"error":  res.Error,
	})
}

// toRows derives identities for an agency and its roster. Location fields
// come from the catalog suburb, not from the research output.
func toRows(sb *model.Suburb, a AgencyResult) (*model.Agency, []model.Agent) {
	slug := identity.AgencySlug(a.Name, sb.Name)
	agency := &model.Agency{
		DomainID:      identity.StableID(identity.AgencySeed(sb.Slug, slug)),
		Slug:          slug,
		Name:          a.Name,
		BrandName:     a.BrandName,
		LogoURL:       a.LogoURL,
		Website:       a.Website,
		Description:   a.Description,
		Phone:         a.Phone,
		Email:         a.Email,
		StreetAddress: a.StreetAddress,
		Suburb:        sb.Name,
		State:         sb.State,
		Postcode:      sb.Postcode,
		AgentCount:    len(a.Agents),
	}

	roster := make([]model.Agent, 0, len(a.Agents))
	for _, ag := range a.Agents {
		id := identity.StableID(identity.AgentSeed(sb.Slug, a.Name, ag.FirstName, ag.LastName, ag.Email, ag.Phone))
		roster = append(roster, model.Agent{
			DomainID: id,
			Slug: identity.AgentSlug(identity.AgentSlugInput{
				DomainID:   id,
				AgencyName: a.Name,
				FirstName:  ag.FirstName,
				LastName:   ag.LastName,
				Suburb:     sb.Name,
			}),
			FirstName:        ag.FirstName,
			LastName:         ag.LastName,
			Email:            ag.Email,
			Phone:            ag.Phone,
			Mobile:           ag.Mobile,
			PhotoURL:         ag.PhotoURL,
			ProfileText:      ag.ProfileText,
			PrimarySuburb:    sb.Name,
			PrimaryState:     sb.State,
			PrimaryPostcode:  sb.Postcode,
			EnrichmentStatus: model.EnrichmentPending,
		})
	}
	return agency, roster
}
