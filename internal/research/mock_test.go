package research

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/agent-research-cli/pkg/anthropic"
	"github.com/sells-group/agent-research-cli/pkg/perplexity"
)

// --- Anthropic Client Mock ---

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- Perplexity Client Mock ---

type mockPerplexity struct {
	mock.Mock
}

func (m *mockPerplexity) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}

// --- Backend stub ---

type stubBackend struct {
	name string
	fn   func(ctx context.Context, req Request) (*Response, error)
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Research(ctx context.Context, req Request) (*Response, error) {
	return s.fn(ctx, req)
}
