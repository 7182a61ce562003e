package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/agent-research-cli/internal/activity"
	"github.com/sells-group/agent-research-cli/internal/cost"
	"github.com/sells-group/agent-research-cli/internal/identity"
	"github.com/sells-group/agent-research-cli/internal/metrics"
	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/research"
	"github.com/sells-group/agent-research-cli/internal/store"
)

func fixtureOrchestrator(st Store) *Orchestrator {
	return New(Config{Mode: research.ModeFixture}, st, nil, nil, nil)
}

func suburbRows(t *testing.T, st *faultStore) (agencies []model.Agency, agents []model.Agent) {
	t.Helper()
	ctx := context.Background()
	agencies, err := st.ListAgencies(ctx, store.AgencyFilter{Suburb: "Mosman", State: "NSW"})
	require.NoError(t, err)
	agents, err = st.ListAgents(ctx, store.AgentFilter{Suburb: "Mosman", State: "NSW"})
	require.NoError(t, err)
	return agencies, agents
}

func getSuburb(t *testing.T, st *faultStore) *model.Suburb {
	t.Helper()
	sb, err := st.GetSuburb(context.Background(), "mosman-nsw-2088")
	require.NoError(t, err)
	require.NotNil(t, sb)
	return sb
}

// --- Resolve ---

func TestResolve(t *testing.T) {
	st := newFaultStore(t)
	noPostcode := model.Suburb{SuburbID: "cremorne-nsw", Name: "Cremorne", State: "NSW", Slug: "cremorne-nsw", PriorityTier: 2}
	abandoned := model.Suburb{SuburbID: "manly-nsw-2095", Name: "Manly", State: "NSW", Postcode: "2095", Slug: "manly-nsw-2095", PriorityTier: 1}
	seedSuburbs(t, st, mosman(), noPostcode, abandoned)
	status := model.ScrapeStatusAbandoned
	require.NoError(t, st.UpdateSuburb(context.Background(), abandoned.Slug, model.SuburbUpdate{Status: &status}))

	o := fixtureOrchestrator(st)
	ctx := context.Background()

	sb, err := o.Resolve(ctx, "MOSMAN", "nsw")
	require.NoError(t, err)
	assert.Equal(t, "mosman-nsw-2088", sb.Slug)

	tests := []struct {
		name   string
		suburb string
		state  string
		want   error
	}{
		{name: "unknown suburb", suburb: "Atlantis", state: "NSW", want: ErrSuburbNotFound},
		{name: "wrong state", suburb: "Mosman", state: "VIC", want: ErrSuburbNotFound},
		{name: "blank", suburb: " ", state: "NSW", want: ErrSuburbNotFound},
		{name: "missing postcode", suburb: "Cremorne", state: "NSW", want: ErrMissingPostcode},
		{name: "abandoned", suburb: "Manly", state: "NSW", want: ErrSuburbAbandoned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Resolve(ctx, tt.suburb, tt.state)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRun_PreconditionFailureWritesNothing(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	backend := payloadBackend(`{"agencies": []}`)
	o := New(Config{Mode: research.ModeLive}, st, backend, nil, nil)

	res, err := o.Run(context.Background(), Input{Suburb: "Atlantis", State: "NSW"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSuburbNotFound))
	assert.Contains(t, err.Error(), "Atlantis, NSW")
	assert.Nil(t, res)
	assert.Zero(t, backend.calls)
	assert.Equal(t, model.ScrapeStatusPending, getSuburb(t, st).Status)
}

// --- Run ---

func TestRun_DryRun(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	feed := activity.NewFeed(10)

	res, err := New(Config{}, st, nil, feed, nil).Run(context.Background(), Input{Suburb: "Mosman", State: "NSW", DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, StatusDryRun, res.Status)
	assert.Equal(t, "mosman-nsw-2088", res.SuburbSlug)
	assert.Zero(t, st.groupCalls)
	assert.Equal(t, model.ScrapeStatusPending, getSuburb(t, st).Status)
	require.Len(t, feed.History(), 1)
}

func TestRun_FixtureConverges(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	o := fixtureOrchestrator(st)

	for run := range 2 {
		res, err := o.Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})
		require.NoError(t, err)
		require.Equal(t, StatusComplete, res.Status, "run %d: %s", run, res.Error)
		assert.Equal(t, 3, res.AgenciesFound, "run %d", run)
		assert.Equal(t, 12, res.AgentsFound, "run %d", run)

		sb := getSuburb(t, st)
		assert.Equal(t, model.ScrapeStatusDiscovered, sb.Status)
		assert.Equal(t, 3, sb.AgenciesFound)
		assert.Equal(t, 12, sb.AgentsFound)
		assert.NotNil(t, sb.CompletedAt)
		assert.Empty(t, sb.ErrorMessage)
	}

	agencies, agents := suburbRows(t, st)
	assert.Len(t, agencies, 3)
	assert.Len(t, agents, 12)
	for _, a := range agents {
		assert.Equal(t, model.EnrichmentPending, a.EnrichmentStatus)
		assert.Equal(t, "2088", a.PrimaryPostcode)
	}
}

func TestRun_RediscoveryKeepsEnrichment(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	o := fixtureOrchestrator(st)
	ctx := context.Background()

	_, err := o.Run(ctx, Input{Suburb: "Mosman", State: "NSW"})
	require.NoError(t, err)

	claimed, err := st.ClaimPendingAgents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, st.UpdateAgentEnrichment(ctx, claimed[0].ID, model.Enrichment{
		Bio:    "Enriched bio",
		Status: model.EnrichmentComplete,
	}))

	_, err = o.Run(ctx, Input{Suburb: "Mosman", State: "NSW"})
	require.NoError(t, err)

	again, err := st.GetAgent(ctx, claimed[0].Slug)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, model.EnrichmentComplete, again.EnrichmentStatus)
	assert.Equal(t, claimed[0].DomainID, again.DomainID)
}

func TestRun_Identities(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())

	_, err := fixtureOrchestrator(st).Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})
	require.NoError(t, err)

	agency, err := st.GetAgency(context.Background(), "example-realty-mosman")
	require.NoError(t, err)
	require.NotNil(t, agency)
	assert.Equal(t, identity.StableID("agency:mosman-nsw-2088:example-realty-mosman"), agency.DomainID)
	assert.Equal(t, 4, agency.AgentCount)
	assert.Equal(t, "https://example.com/agency/example-realty", agency.Website)
	assert.Equal(t, "2088", agency.Postcode)

	id := identity.StableID("agent:mosman-nsw-2088:Example Realty Mosman:Alex:Taylor::")
	slug := "alex-taylor-mosman-erm-" + identity.ShortHash(id)
	agent, err := st.GetAgent(context.Background(), slug)
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, id, agent.DomainID)
	require.NotNil(t, agent.AgencyID)
	assert.Equal(t, agency.ID, *agent.AgencyID)
}

func TestRun_FailureIsolation(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	st.failGroupAt = 2
	feed := activity.NewFeed(10)

	res, err := New(Config{Mode: research.ModeFixture}, st, nil, feed, nil).Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Zero(t, res.AgenciesFound)
	assert.Zero(t, res.AgentsFound)
	assert.Contains(t, res.Error, errInjected.Error())

	// The first agency stays written and the suburb counts reflect it.
	agencies, agents := suburbRows(t, st)
	require.Len(t, agencies, 1)
	assert.Equal(t, "example-realty-mosman", agencies[0].Slug)
	assert.Len(t, agents, 4)

	sb := getSuburb(t, st)
	assert.Equal(t, model.ScrapeStatusFailed, sb.Status)
	assert.Equal(t, 1, sb.AgenciesFound)
	assert.Equal(t, 4, sb.AgentsFound)
	assert.Contains(t, sb.ErrorMessage, errInjected.Error())

	history := feed.History()
	require.NotEmpty(t, history)
	assert.Equal(t, activity.Error, history[len(history)-1].Type)
}

func TestRun_RetryAfterFailure(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	st.failGroupAt = 1
	o := fixtureOrchestrator(st)

	res, err := o.Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, res.Status)

	st.failGroupAt = 0
	res, err = o.Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)

	sb := getSuburb(t, st)
	assert.Equal(t, model.ScrapeStatusDiscovered, sb.Status)
	assert.Empty(t, sb.ErrorMessage)
}

func TestRun_BackendErrorMarksFailed(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	backend := &stubBackend{fn: func(context.Context, research.Request) (*research.Response, error) {
		return nil, research.ErrTimeout
	}}

	res, err := New(Config{Mode: research.ModeLive}, st, backend, nil, nil).Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, backend.calls)
	assert.Zero(t, st.groupCalls, "a live failure never falls back to the fixture")

	sb := getSuburb(t, st)
	assert.Equal(t, model.ScrapeStatusFailed, sb.Status)
	assert.Equal(t, research.ErrTimeout.Error(), sb.ErrorMessage)
	assert.Zero(t, sb.AgenciesFound)
}

func TestRun_MalformedPayloadMarksFailed(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())

	res, err := New(Config{Mode: research.ModeLive}, st, payloadBackend("no agencies found"), nil, nil).
		Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, res.Cost.Calls)
	assert.Equal(t, model.ScrapeStatusFailed, getSuburb(t, st).Status)
}

func TestRun_LiveWithoutBackend(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())

	res, err := New(Config{Mode: research.ModeLive}, st, nil, nil, nil).Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "without a research backend")
}

func TestRun_LiveOutput(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())

	var b strings.Builder
	b.WriteString(`{"status": "success", "agencies": [{"name": "", "agents": []}`)
	for i := range 22 {
		website := "null"
		if i%2 == 0 {
			website = fmt.Sprintf(`"https://agency%d.example.com"`, i)
		}
		fmt.Fprintf(&b, `, {"name": "Agency %02d", "website": %s, "suburb": "Elsewhere", "state": "VIC", "postcode": "3000",
			"agents": [{"first_name": "Pat", "last_name": "Lee%d"}, {"first_name": "NoSurname"}]}`, i, website, i)
	}
	b.WriteString(`]}`)
	backend := payloadBackend(b.String())
	backend.fn = func(_ context.Context, req research.Request) (*research.Response, error) {
		assert.Equal(t, research.TaskDiscovery, req.Task)
		assert.Contains(t, req.Prompt, "Mosman, NSW 2088")
		assert.NotEmpty(t, req.System)
		return &research.Response{
			Payload: []byte(b.String()),
			Model:   "test-model",
			Usage:   cost.Usage{InputTokens: 1_000_000, OutputTokens: 500_000},
		}, nil
	}
	calc := cost.NewCalculator(cost.Rates{Models: map[string]cost.ModelRate{"test-model": {Input: 3, Output: 15}}})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	o := New(Config{Mode: research.ModeLive, Calculator: calc}, st, backend, nil, m)
	res, err := o.Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})

	require.NoError(t, err)
	require.Equal(t, StatusComplete, res.Status, res.Error)
	assert.Equal(t, DefaultMaxAgencies, res.AgenciesFound)
	assert.Equal(t, DefaultMaxAgencies, res.AgentsFound)
	require.NotNil(t, res.Cost.EstimatedUSD)
	assert.InDelta(t, 10.5, *res.Cost.EstimatedUSD, 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiscoveryRuns.WithLabelValues("complete")))

	agencies, _ := suburbRows(t, st)
	require.Len(t, agencies, DefaultMaxAgencies)
	for _, a := range agencies {
		assert.Equal(t, "Mosman", a.Suburb, "location comes from the catalog")
		assert.Equal(t, "2088", a.Postcode)
		assert.NotEmpty(t, a.Website)
	}

	backfilled, err := st.GetAgency(context.Background(), "agency-01-mosman")
	require.NoError(t, err)
	require.NotNil(t, backfilled)
	assert.Equal(t, WebsiteBase+"agency-01-mosman", backfilled.Website)

	kept, err := st.GetAgency(context.Background(), "agency-00-mosman")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "https://agency0.example.com", kept.Website)
}

func TestRun_NonLatinAgencyNamesStayDistinct(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	backend := payloadBackend(`{"agencies": [
		{"name": "東京不動産", "agents": [{"first_name": "Yuki", "last_name": "Sato"}]},
		{"name": "大阪不動産", "agents": [{"first_name": "Ken", "last_name": "Ito"}]}
	]}`)

	res, err := New(Config{Mode: research.ModeLive}, st, backend, nil, nil).
		Run(context.Background(), Input{Suburb: "Mosman", State: "NSW"})

	require.NoError(t, err)
	require.Equal(t, StatusComplete, res.Status, res.Error)
	assert.Equal(t, 2, res.AgenciesFound)
	assert.Equal(t, 2, res.AgentsFound)

	require.Len(t, st.groups, 2)
	assert.NotEqual(t, st.groups[0].Slug, st.groups[1].Slug)
	assert.NotEqual(t, st.groups[0].DomainID, st.groups[1].DomainID)
	for _, a := range st.groups {
		assert.NotEqual(t, "mosman", a.Slug)
	}
}

func TestRun_InputModeOverridesDefault(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	backend := payloadBackend(`{"agencies": []}`)

	res, err := New(Config{Mode: research.ModeLive}, st, backend, nil, nil).
		Run(context.Background(), Input{Suburb: "Mosman", State: "NSW", Mode: research.ModeFixture})

	require.NoError(t, err)
	assert.Equal(t, StatusComplete, res.Status)
	assert.Zero(t, backend.calls)
	assert.Equal(t, 3, res.AgenciesFound)
}

func TestRun_CancelledContextStillRecordsFailure(t *testing.T) {
	st := newFaultStore(t)
	seedSuburbs(t, st, mosman())
	ctx, cancel := context.WithCancel(context.Background())
	backend := &stubBackend{fn: func(ctx context.Context, _ research.Request) (*research.Response, error) {
		cancel()
		return nil, ctx.Err()
	}}

	res, err := New(Config{Mode: research.ModeLive}, st, backend, nil, nil).Run(ctx, Input{Suburb: "Mosman", State: "NSW"})

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, model.ScrapeStatusFailed, getSuburb(t, st).Status)
}

func TestToRows(t *testing.T) {
	sb := mosman()
	agency, roster := toRows(&sb, AgencyResult{
		Name: "Ray White Mosman",
		Agents: []AgentResult{
			{FirstName: "Jane", LastName: "Doe", Email: "jane@rw.com.au"},
			{FirstName: "Jane", LastName: "Doe"},
		},
	})

	assert.Equal(t, "ray-white-mosman", agency.Slug)
	assert.Equal(t, 2, agency.AgentCount)
	require.Len(t, roster, 2)
	assert.NotEqual(t, roster[0].DomainID, roster[1].DomainID, "namesakes with different contacts stay distinct")
	assert.True(t, strings.HasPrefix(roster[0].Slug, "jane-doe-mosman-rw-"))
	assert.Equal(t, model.EnrichmentPending, roster[0].EnrichmentStatus)

	againAgency, againRoster := toRows(&sb, AgencyResult{
		Name:   "Ray White Mosman",
		Agents: []AgentResult{{FirstName: "Jane", LastName: "Doe", Email: "jane@rw.com.au"}},
	})
	assert.Equal(t, agency.DomainID, againAgency.DomainID)
	assert.Equal(t, roster[0].Slug, againRoster[0].Slug)
}
