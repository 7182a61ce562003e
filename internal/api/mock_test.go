package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/agent-research-cli/internal/activity"
	"github.com/sells-group/agent-research-cli/internal/discovery"
	"github.com/sells-group/agent-research-cli/internal/enrichment"
	"github.com/sells-group/agent-research-cli/internal/metrics"
	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/progress"
	"github.com/sells-group/agent-research-cli/internal/research"
	"github.com/sells-group/agent-research-cli/internal/store"
)

// mockDiscoverer is a testify mock for Discoverer.
type mockDiscoverer struct {
	mock.Mock
}

func (m *mockDiscoverer) Resolve(ctx context.Context, suburb, state string) (*model.Suburb, error) {
	args := m.Called(ctx, suburb, state)
	if sb := args.Get(0); sb != nil {
		return sb.(*model.Suburb), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscoverer) Run(ctx context.Context, in discovery.Input) (*discovery.Result, error) {
	args := m.Called(ctx, in)
	if res := args.Get(0); res != nil {
		return res.(*discovery.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

// harness is a server over a real SQLite store with fixture-mode
// orchestrators.
type harness struct {
	srv     *Server
	handler http.Handler
	store   *store.SQLiteStore
	feed    *activity.Feed
	metrics *metrics.Metrics
}

func mosman() model.Suburb {
	return model.Suburb{
		SuburbID: "mosman-nsw-2088", Name: "Mosman", State: "NSW", Postcode: "2088",
		Slug: "mosman-nsw-2088", PriorityTier: 1, Region: "Lower North Shore",
	}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	_, err = st.SeedSuburbs(ctx, []model.Suburb{
		mosman(),
		{SuburbID: "cremorne-nsw", Name: "Cremorne", State: "NSW", Slug: "cremorne-nsw", PriorityTier: 1},
		{SuburbID: "manly-nsw-2095", Name: "Manly", State: "NSW", Postcode: "2095", Slug: "manly-nsw-2095", PriorityTier: 1},
	})
	require.NoError(t, err)
	abandoned := model.ScrapeStatusAbandoned
	require.NoError(t, st.UpdateSuburb(ctx, "manly-nsw-2095", model.SuburbUpdate{Status: &abandoned}))

	feed := activity.NewFeed(50)
	m := metrics.New(prometheus.NewRegistry())
	srv := New(cfg, Deps{
		Store:      st,
		Discovery:  discovery.New(discovery.Config{Mode: research.ModeFixture}, st, nil, feed, m),
		Enrichment: enrichment.New(enrichment.Config{Mode: research.ModeFixture}, st, nil, feed, m),
		Progress:   progress.New(st),
		Feed:       feed,
		Metrics:    m,
	})
	return &harness{srv: srv, handler: srv.Handler(), store: st, feed: feed, metrics: m}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// wait blocks until background jobs finish.
func (h *harness) wait(t *testing.T) {
	t.Helper()
	require.NoError(t, h.srv.Shutdown(context.Background()))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func bodyOf(s string) io.Reader { return strings.NewReader(s) }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
