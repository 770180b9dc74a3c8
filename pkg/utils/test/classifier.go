package testutils

import (
	"context"
	"fmt"

	"github.com/nickyai/memex/pkg/classifier"
	"github.com/nickyai/memex/pkg/memory"
)

// MockClassifier is a test conflict classifier returning canned pairs.
type MockClassifier struct {
	// Pairs is returned by Classify.
	Pairs []classifier.ConflictPair

	// Fail causes Classify to return an error.
	Fail bool

	// Seen records the fact IDs passed to the last Classify call.
	Seen []string
}

func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

func (m *MockClassifier) Classify(_ context.Context, facts []*memory.Fact) ([]classifier.ConflictPair, error) {
	m.Seen = m.Seen[:0]
	for _, fact := range facts {
		m.Seen = append(m.Seen, fact.ID)
	}

	if m.Fail {
		return nil, fmt.Errorf("mock classifier failure")
	}
	return m.Pairs, nil
}

func (m *MockClassifier) Close() error {
	return nil
}
