package testutils

import (
	"context"
	"errors"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
	"github.com/nickyai/memex/pkg/storage/inmemory"
)

// ErrMockStore is returned by MockFactStore methods with their failure
// switch set.
var ErrMockStore = errors.New("mock store failure")

// MockFactStore wraps the in-memory driver with switchable failures for
// exercising degraded paths.
type MockFactStore struct {
	*inmemory.Driver

	FailGet        bool
	FailList       bool
	FailSearch     bool
	FailPatch      bool
	FailListEvents bool
}

func NewMockFactStore() *MockFactStore {
	return &MockFactStore{Driver: inmemory.NewDriver()}
}

func (m *MockFactStore) GetFact(ctx context.Context, id string) (*memory.Fact, error) {
	if m.FailGet {
		return nil, ErrMockStore
	}
	return m.Driver.GetFact(ctx, id)
}

func (m *MockFactStore) ListFacts(ctx context.Context, q storage.FactQuery) ([]*memory.Fact, error) {
	if m.FailList {
		return nil, ErrMockStore
	}
	return m.Driver.ListFacts(ctx, q)
}

func (m *MockFactStore) SearchFacts(ctx context.Context, profileID string, terms []string, limit int) ([]*memory.Fact, error) {
	if m.FailSearch {
		return nil, ErrMockStore
	}
	return m.Driver.SearchFacts(ctx, profileID, terms, limit)
}

func (m *MockFactStore) PatchFact(ctx context.Context, id string, patch storage.FactPatch) (*memory.Fact, error) {
	if m.FailPatch {
		return nil, ErrMockStore
	}
	return m.Driver.PatchFact(ctx, id, patch)
}

func (m *MockFactStore) ListEvents(ctx context.Context, profileID string) ([]*memory.Event, error) {
	if m.FailListEvents {
		return nil, ErrMockStore
	}
	return m.Driver.ListEvents(ctx, profileID)
}
