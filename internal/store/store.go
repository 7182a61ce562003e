package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/agent-research-cli/internal/model"
)

// ErrIdentityConflict is returned when an upsert's numeric id and slug
// resolve to two different existing rows.
var ErrIdentityConflict = eris.New("store: domain_id and slug match different rows")

// SuburbFilter specifies criteria for listing suburbs.
type SuburbFilter struct {
	Status model.ScrapeStatus `json:"status,omitempty"`
	State  string             `json:"state,omitempty"`
	Tier   int                `json:"tier,omitempty"`
	Limit  int                `json:"limit,omitempty"`
}

// AgencyFilter specifies criteria for listing agencies.
type AgencyFilter struct {
	Suburb   string `json:"suburb,omitempty"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// AgentFilter specifies criteria for listing agents. Suburb matches either
// the agent's primary suburb or its agency's suburb.
type AgentFilter struct {
	Suburb           string                 `json:"suburb,omitempty"`
	State            string                 `json:"state,omitempty"`
	AgencyID         int64                  `json:"agency_id,omitempty"`
	EnrichmentStatus model.EnrichmentStatus `json:"enrichment_status,omitempty"`
	Limit            int                    `json:"limit,omitempty"`
}

// Totals holds row counts across the three relations.
type Totals struct {
	Suburbs  int `json:"suburbs"`
	Agencies int `json:"agencies"`
	Agents   int `json:"agents"`
}

// GroupResult reports the row ids written by UpsertAgencyGroup.
type GroupResult struct {
	AgencyID int64
	AgentIDs []int64
}

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

// Store defines the persistence interface for the agent research pipeline.
// Reads of missing rows return (nil, nil); write errors are returned.
type Store interface {
	// Suburbs
	SeedSuburbs(ctx context.Context, suburbs []model.Suburb) (int, error)
	GetSuburb(ctx context.Context, slug string) (*model.Suburb, error)
	FindSuburb(ctx context.Context, name, state string) (*model.Suburb, error)
	ListSuburbs(ctx context.Context, filter SuburbFilter) ([]model.Suburb, error)
	UpdateSuburb(ctx context.Context, slug string, update model.SuburbUpdate) error
	CountSuburbsByStatus(ctx context.Context) (map[string]int, error)

	// Agencies
	UpsertAgencyGroup(ctx context.Context, agency *model.Agency, agents []model.Agent) (*GroupResult, error)
	GetAgency(ctx context.Context, slug string) (*model.Agency, error)
	GetAgencyByID(ctx context.Context, id int64) (*model.Agency, error)
	ListAgencies(ctx context.Context, filter AgencyFilter) ([]model.Agency, error)
	SetAgencyWebsite(ctx context.Context, id int64, website string) error

	// Agents
	GetAgent(ctx context.Context, slug string) (*model.Agent, error)
	ListAgents(ctx context.Context, filter AgentFilter) ([]model.Agent, error)
	CountSuburbRows(ctx context.Context, suburb, state string) (agencies, agents int, err error)
	ClaimPendingAgents(ctx context.Context, limit int) ([]model.Agent, error)
	UpdateAgentEnrichment(ctx context.Context, id int64, e model.Enrichment) error
	FailAgents(ctx context.Context, ids []int64, message string) error
	CountAgentsByStatus(ctx context.Context) (map[string]int, error)
	CountAgentsByQuality(ctx context.Context) (map[string]int, error)
	Totals(ctx context.Context) (*Totals, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
