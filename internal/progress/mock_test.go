package progress

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/agent-research-cli/internal/model"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetSuburb(ctx context.Context, slug string) (*model.Suburb, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Suburb), args.Error(1)
}

func (m *mockStore) UpdateSuburb(ctx context.Context, slug string, update model.SuburbUpdate) error {
	args := m.Called(ctx, slug, update)
	return args.Error(0)
}

func (m *mockStore) CountSuburbRows(ctx context.Context, suburb, state string) (int, int, error) {
	args := m.Called(ctx, suburb, state)
	return args.Int(0), args.Int(1), args.Error(2)
}
