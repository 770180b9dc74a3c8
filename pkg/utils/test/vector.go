package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/nickyai/memex/pkg/vector"
)

// MockVectorDriver is a test vector driver that records adds and deletes
// and returns configurable query results.
type MockVectorDriver struct {
	mu sync.Mutex

	// Added accumulates all documents passed to Add.
	Added []vector.Document

	// Deleted accumulates all IDs passed to Delete.
	Deleted []string

	// Results is returned by Query, truncated to topK.
	Results []vector.QueryResult

	// FailQuery causes Query to return an error.
	FailQuery bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Added = append(m.Added, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ string, _ []float32, topK int) ([]vector.QueryResult, error) {
	if m.FailQuery {
		return nil, fmt.Errorf("mock vector query failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, _ []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Added, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, ids...)
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
