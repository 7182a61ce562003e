package enrichment

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/research"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ClaimPendingAgents(ctx context.Context, limit int) ([]model.Agent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Agent), args.Error(1)
}

func (m *mockStore) UpdateAgentEnrichment(ctx context.Context, id int64, e model.Enrichment) error {
	args := m.Called(ctx, id, e)
	return args.Error(0)
}

func (m *mockStore) FailAgents(ctx context.Context, ids []int64, message string) error {
	args := m.Called(ctx, ids, message)
	return args.Error(0)
}

// --- Backend stub ---

type stubBackend struct {
	calls int
	fn    func(ctx context.Context, req research.Request) (*research.Response, error)
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Research(ctx context.Context, req research.Request) (*research.Response, error) {
	s.calls++
	return s.fn(ctx, req)
}

func payloadBackend(payload string) *stubBackend {
	return &stubBackend{fn: func(context.Context, research.Request) (*research.Response, error) {
		return &research.Response{
			Payload:  []byte(payload),
			Model:    "test-model",
			Provider: "stub",
		}, nil
	}}
}
