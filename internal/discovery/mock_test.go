package discovery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/research"
	"github.com/sells-group/agent-research-cli/internal/store"
)

var errInjected = errors.New("injected write failure")

// faultStore wraps a real SQLite store and fails the Nth agency group
// write when failGroupAt is set. It records every group it was asked to
// write.
type faultStore struct {
	*store.SQLiteStore

	failGroupAt int
	groupCalls  int
	groups      []*model.Agency
}

func (f *faultStore) UpsertAgencyGroup(ctx context.Context, agency *model.Agency, agents []model.Agent) (*store.GroupResult, error) {
	f.groupCalls++
	f.groups = append(f.groups, agency)
	if f.failGroupAt > 0 && f.groupCalls == f.failGroupAt {
		return nil, errInjected
	}
	return f.SQLiteStore.UpsertAgencyGroup(ctx, agency, agents)
}

func newFaultStore(t *testing.T) *faultStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "discovery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return &faultStore{SQLiteStore: st}
}

func mosman() model.Suburb {
	return model.Suburb{
		SuburbID:     "mosman-nsw-2088",
		Name:         "Mosman",
		State:        "NSW",
		Postcode:     "2088",
		Slug:         "mosman-nsw-2088",
		PriorityTier: 1,
		Region:       "Lower North Shore",
	}
}

func seedSuburbs(t *testing.T, st *faultStore, suburbs ...model.Suburb) {
	t.Helper()
	_, err := st.SeedSuburbs(context.Background(), suburbs)
	require.NoError(t, err)
}

// --- Backend stub ---

type stubBackend struct {
	calls    int
	requests []research.Request
	fn       func(ctx context.Context, req research.Request) (*research.Response, error)
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Research(ctx context.Context, req research.Request) (*research.Response, error) {
	s.calls++
	s.requests = append(s.requests, req)
	return s.fn(ctx, req)
}

func payloadBackend(payload string) *stubBackend {
	return &stubBackend{fn: func(context.Context, research.Request) (*research.Response, error) {
		return &research.Response{Payload: []byte(payload), Model: "test-model", Provider: "stub"}, nil
	}}
}
