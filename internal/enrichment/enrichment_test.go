package enrichment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/agent-research-cli/internal/activity"
	"github.com/sells-group/agent-research-cli/internal/cost"
	"github.com/sells-group/agent-research-cli/internal/metrics"
	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/research"
	"github.com/sells-group/agent-research-cli/internal/store"
)

func claimed(n int) []model.Agent {
	agents := make([]model.Agent, n)
	for i := range agents {
		agents[i] = model.Agent{
			ID:              int64(i + 1),
			DomainID:        int64(9001 + i),
			FirstName:       fmt.Sprintf("Agent%d", i+1),
			LastName:        "Nguyen",
			AgencyName:      "Harbour Homes Mosman",
			PrimarySuburb:   "Mosman",
			PrimaryState:    "NSW",
			PrimaryPostcode: "2088",
		}
	}
	return agents
}

func liveConfig() Config {
	return Config{Mode: research.ModeLive}
}

func TestLimit(t *testing.T) {
	o := New(Config{}, &mockStore{}, nil, nil, nil)
	assert.Equal(t, DefaultLimit, o.Limit(0))
	assert.Equal(t, DefaultLimit, o.Limit(-3))
	assert.Equal(t, 25, o.Limit(25))
	assert.Equal(t, MaxLimit, o.Limit(500))

	custom := New(Config{DefaultLimit: 5, MaxLimit: 8}, &mockStore{}, nil, nil, nil)
	assert.Equal(t, 5, custom.Limit(0))
	assert.Equal(t, 8, custom.Limit(9))
}

func TestNew_InvalidModeFallsBackToFixture(t *testing.T) {
	o := New(Config{Mode: "hybrid"}, &mockStore{}, nil, nil, nil)
	assert.Equal(t, research.ModeFixture, o.cfg.Mode)
}

func TestRun_DryRun(t *testing.T) {
	st := &mockStore{}
	feed := activity.NewFeed(10)

	res := New(liveConfig(), st, nil, feed, nil).Run(context.Background(), Input{Limit: 3, DryRun: true})

	assert.Equal(t, StatusDryRun, res.Status)
	assert.NotEmpty(t, res.RunID)
	assert.Zero(t, res.Processed)
	st.AssertNotCalled(t, "ClaimPendingAgents", mock.Anything, mock.Anything)
	require.Len(t, feed.History(), 1)
	assert.Equal(t, "Enrichment dry run", feed.History()[0].Message)
}

func TestRun_NoPendingAgents(t *testing.T) {
	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, DefaultLimit).Return([]model.Agent{}, nil)
	backend := payloadBackend(`{"agents": []}`)

	res := New(liveConfig(), st, backend, nil, nil).Run(context.Background(), Input{})

	assert.Equal(t, StatusComplete, res.Status)
	assert.Zero(t, res.Processed)
	assert.Zero(t, backend.calls)
	assert.Equal(t, 0, res.Cost.Calls)
	st.AssertExpectations(t)
}

func TestRun_ClaimError(t *testing.T) {
	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 5).Return(nil, errors.New("database is locked"))

	res := New(liveConfig(), st, nil, nil, nil).Run(context.Background(), Input{Limit: 5})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "database is locked")
	assert.Zero(t, res.Processed)
	st.AssertNotCalled(t, "FailAgents", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_FixtureMode(t *testing.T) {
	agents := claimed(2)
	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 2).Return(agents, nil)
	for _, a := range agents {
		bio := SyntheticBio(a)
		st.On("UpdateAgentEnrichment", mock.Anything, a.ID, mock.MatchedBy(func(e model.Enrichment) bool {
			return e.Status == model.EnrichmentComplete &&
				e.Quality == model.QualityMinimal &&
				e.Bio == bio &&
				!e.EnrichedAt.IsZero()
		})).Return(nil).Once()
	}
	backend := payloadBackend(`{"agents": []}`)

	res := New(Config{Mode: research.ModeFixture}, st, backend, nil, nil).Run(context.Background(), Input{Limit: 2})

	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Completed)
	assert.Zero(t, res.Failed)
	assert.Zero(t, backend.calls)
	assert.Nil(t, res.Cost.EstimatedUSD)
	st.AssertExpectations(t)
}

func TestRun_InputModeOverridesDefault(t *testing.T) {
	agents := claimed(1)
	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 1).Return(agents, nil)
	st.On("UpdateAgentEnrichment", mock.Anything, int64(1), mock.Anything).Return(nil)
	backend := payloadBackend(`{"agents": []}`)

	res := New(liveConfig(), st, backend, nil, nil).Run(context.Background(), Input{Limit: 1, Mode: research.ModeFixture})

	assert.Equal(t, StatusComplete, res.Status)
	assert.Zero(t, backend.calls)
}

func TestRun_LiveBatch(t *testing.T) {
	agents := claimed(4)
	payload := `{"agents": [
		{"agent_domain_id": 9001, "enriched_bio": "Agent1 Nguyen has sold homes across Mosman and the lower north shore since 2012.",
		 "years_experience": 12, "years_experience_source": "linkedin", "languages": ["Vietnamese"],
		 "sources_found": ["linkedin"], "confidence": "high", "status": "success"},
		{"agent_domain_id": 9002, "languages": ["Mandarin"], "sources_found": [], "confidence": "low", "status": "success"},
		{"agent_domain_id": 9003, "years_experience": 3, "confidence": "medium", "status": "partial"},
		{"agent_domain_id": 9003, "years_experience": 30, "status": "success"},
		{"agent_domain_id": 123456, "status": "success"}
	]}`

	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 4).Return(agents, nil)
	st.On("UpdateAgentEnrichment", mock.Anything, int64(1), mock.MatchedBy(func(e model.Enrichment) bool {
		return e.Status == model.EnrichmentComplete &&
			e.Quality == model.QualityHigh &&
			e.YearsExperience != nil && *e.YearsExperience == 12 &&
			assert.ObjectsAreEqual([]string{"Vietnamese"}, e.Languages)
	})).Return(nil).Once()
	st.On("UpdateAgentEnrichment", mock.Anything, int64(2), mock.MatchedBy(func(e model.Enrichment) bool {
		return e.Status == model.EnrichmentFailed && e.Error == MsgLanguagesNoSources
	})).Return(nil).Once()
	st.On("UpdateAgentEnrichment", mock.Anything, int64(3), mock.MatchedBy(func(e model.Enrichment) bool {
		return e.Status == model.EnrichmentComplete &&
			e.YearsExperience != nil && *e.YearsExperience == 3 &&
			e.Bio == SyntheticBio(agents[2])
	})).Return(nil).Once()
	st.On("FailAgents", mock.Anything, []int64{4}, MsgNoResult).Return(nil).Once()

	backend := payloadBackend(payload)
	backend.fn = func(_ context.Context, req research.Request) (*research.Response, error) {
		assert.Equal(t, research.TaskEnrichment, req.Task)
		assert.Contains(t, req.Prompt, `"agent_domain_id": 9004`)
		assert.NotEmpty(t, req.Schema)
		return &research.Response{
			Payload: []byte(payload),
			Model:   "test-model",
			Usage:   cost.Usage{InputTokens: 2_000_000, OutputTokens: 1_000_000},
		}, nil
	}
	calc := cost.NewCalculator(cost.Rates{Models: map[string]cost.ModelRate{"test-model": {Input: 1, Output: 2}}})
	cfg := liveConfig()
	cfg.Calculator = calc

	res := New(cfg, st, backend, nil, nil).Run(context.Background(), Input{Limit: 4})

	assert.Equal(t, StatusComplete, res.Status)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, 1, res.Cost.Calls)
	require.NotNil(t, res.Cost.EstimatedUSD)
	assert.InDelta(t, 4.0, *res.Cost.EstimatedUSD, 1e-9)
	st.AssertExpectations(t)
}

func TestRun_BackendErrorFailsBatch(t *testing.T) {
	agents := claimed(3)
	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 3).Return(agents, nil)
	st.On("FailAgents", mock.Anything, []int64{1, 2, 3}, research.ErrTimeout.Error()).Return(nil).Once()

	backend := &stubBackend{fn: func(context.Context, research.Request) (*research.Response, error) {
		return nil, research.ErrTimeout
	}}
	feed := activity.NewFeed(10)

	res := New(liveConfig(), st, backend, feed, nil).Run(context.Background(), Input{Limit: 3})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.Processed)
	assert.Zero(t, res.Completed)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, research.ErrTimeout.Error(), res.Error)
	st.AssertNotCalled(t, "UpdateAgentEnrichment", mock.Anything, mock.Anything, mock.Anything)
	st.AssertExpectations(t)

	history := feed.History()
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, activity.Error, last.Type)
	assert.Equal(t, "enrichment", last.Route)
}

func TestRun_MalformedPayloadFailsBatch(t *testing.T) {
	agents := claimed(2)
	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 2).Return(agents, nil)
	st.On("FailAgents", mock.Anything, []int64{1, 2}, mock.Anything).Return(nil).Once()

	res := New(liveConfig(), st, payloadBackend(`{"results": []}`), nil, nil).Run(context.Background(), Input{Limit: 2})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "no agents array")
	// The call happened, so its usage is still counted.
	assert.Equal(t, 1, res.Cost.Calls)
	st.AssertExpectations(t)
}

func TestRun_WriteErrorFailsBatch(t *testing.T) {
	agents := claimed(2)
	payload := `{"agents": [{"agent_domain_id": 9001, "status": "partial"}, {"agent_domain_id": 9002, "status": "partial"}]}`
	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 2).Return(agents, nil)
	st.On("UpdateAgentEnrichment", mock.Anything, int64(1), mock.Anything).Return(errors.New("disk full")).Once()
	st.On("FailAgents", mock.Anything, []int64{1, 2}, mock.Anything).Return(nil).Once()

	res := New(liveConfig(), st, payloadBackend(payload), nil, nil).Run(context.Background(), Input{Limit: 2})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "disk full")
	assert.Equal(t, 2, res.Failed)
	st.AssertExpectations(t)
}

func TestRun_LiveWithoutBackend(t *testing.T) {
	agents := claimed(1)
	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 1).Return(agents, nil)
	st.On("FailAgents", mock.Anything, []int64{1}, mock.Anything).Return(nil).Once()

	res := New(liveConfig(), st, nil, nil, nil).Run(context.Background(), Input{Limit: 1})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "without a research backend")
	st.AssertExpectations(t)
}

func TestRun_CancelledContextStillReleasesBatch(t *testing.T) {
	agents := claimed(2)
	ctx, cancel := context.WithCancel(context.Background())

	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 2).Return(agents, nil)
	st.On("FailAgents", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), []int64{1, 2}, mock.Anything).
		Return(nil).Once()

	backend := &stubBackend{fn: func(ctx context.Context, _ research.Request) (*research.Response, error) {
		cancel()
		return nil, ctx.Err()
	}}

	res := New(liveConfig(), st, backend, nil, nil).Run(ctx, Input{Limit: 2})

	assert.Equal(t, StatusFailed, res.Status)
	st.AssertExpectations(t)
}

func TestRun_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	agents := claimed(2)
	st := &mockStore{}
	st.On("ClaimPendingAgents", mock.Anything, 2).Return(agents, nil)
	st.On("UpdateAgentEnrichment", mock.Anything, int64(1), mock.Anything).Return(nil)
	st.On("FailAgents", mock.Anything, []int64{2}, MsgNoResult).Return(nil)

	payload := `{"agents": [{"agent_domain_id": 9001, "status": "success"}]}`
	New(liveConfig(), st, payloadBackend(payload), nil, m).Run(context.Background(), Input{Limit: 2})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrichmentRuns.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrichmentAgents.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrichmentAgents.WithLabelValues("failed")))
}

// --- SQLite-backed runs ---

func newSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "enrich.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedPending(t *testing.T, st *store.SQLiteStore, n int) {
	t.Helper()
	agency := &model.Agency{
		DomainID: 7001,
		Slug:     "harbour-homes-mosman",
		Name:     "Harbour Homes Mosman",
		Suburb:   "Mosman",
		State:    "NSW",
		Postcode: "2088",
	}
	agents := make([]model.Agent, n)
	for i := range agents {
		agents[i] = model.Agent{
			DomainID:        int64(8000 + i),
			Slug:            fmt.Sprintf("agent%d-nguyen-mosman-hhm-%d", i, 8000+i),
			FirstName:       fmt.Sprintf("Agent%d", i),
			LastName:        "Nguyen",
			PrimarySuburb:   "Mosman",
			PrimaryState:    "NSW",
			PrimaryPostcode: "2088",
		}
	}
	_, err := st.UpsertAgencyGroup(context.Background(), agency, agents)
	require.NoError(t, err)
}

func countByStatus(t *testing.T, st *store.SQLiteStore) map[string]int {
	t.Helper()
	counts, err := st.CountAgentsByStatus(context.Background())
	require.NoError(t, err)
	return counts
}

func TestRun_SQLite_ClaimsOnlyTheBatch(t *testing.T) {
	st := newSQLiteStore(t)
	seedPending(t, st, 5)

	backend := &stubBackend{fn: func(ctx context.Context, _ research.Request) (*research.Response, error) {
		// Mid-call the claimed agents are in progress; the rest stay pending.
		counts, err := st.CountAgentsByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, counts[string(model.EnrichmentInProgress)])
		assert.Equal(t, 2, counts[string(model.EnrichmentPending)])
		return &research.Response{Payload: []byte(`{"agents": [
			{"agent_domain_id": 8000, "status": "success", "sources_found": ["agency_website"], "languages": ["Greek"]},
			{"agent_domain_id": 8001, "status": "partial"},
			{"agent_domain_id": 8002, "status": "partial", "years_experience": 75}
		]}`), Model: "test-model"}, nil
	}}

	res := New(liveConfig(), st, backend, nil, nil).Run(context.Background(), Input{Limit: 3})

	require.Equal(t, StatusComplete, res.Status, res.Error)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Completed)
	assert.Equal(t, 1, res.Failed)

	counts := countByStatus(t, st)
	assert.Equal(t, 2, counts[string(model.EnrichmentComplete)])
	assert.Equal(t, 1, counts[string(model.EnrichmentFailed)])
	assert.Equal(t, 2, counts[string(model.EnrichmentPending)])
	assert.Zero(t, counts[string(model.EnrichmentInProgress)])

	first, err := st.GetAgent(context.Background(), "agent0-nguyen-mosman-hhm-8000")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, []string{"Greek"}, first.Languages)
	assert.Equal(t, []string{"agency_website"}, first.EnrichmentSources)
	assert.Contains(t, first.EnrichedBio, "Agent0 Nguyen")
}

func TestRun_SQLite_FixtureDrainsInBatches(t *testing.T) {
	st := newSQLiteStore(t)
	seedPending(t, st, 5)
	o := New(Config{Mode: research.ModeFixture}, st, nil, nil, nil)

	first := o.Run(context.Background(), Input{Limit: 3})
	second := o.Run(context.Background(), Input{Limit: 3})
	third := o.Run(context.Background(), Input{Limit: 3})

	assert.Equal(t, 3, first.Processed)
	assert.Equal(t, 2, second.Processed)
	assert.Zero(t, third.Processed)
	assert.Equal(t, StatusComplete, third.Status)
	assert.Equal(t, 5, countByStatus(t, st)[string(model.EnrichmentComplete)])
}
