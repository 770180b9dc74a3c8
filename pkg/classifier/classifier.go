// Package classifier defines the conflict classification contract.
package classifier

import (
	"context"

	"github.com/nickyai/memex/pkg/memory"
)

// ConflictPair identifies two facts judged to contradict each other.
type ConflictPair struct {
	// FactAID and FactBID are the IDs of the conflicting facts.
	FactAID string `json:"fact_a_id"`
	FactBID string `json:"fact_b_id"`

	// Reason is a short explanation of the contradiction.
	Reason string `json:"reason"`
}

// ConflictClassifier finds contradictions between facts that share no
// canonical key. Implementations are typically model-backed and may be
// slow or unavailable; callers must tolerate errors.
type ConflictClassifier interface {
	// Classify inspects the facts and returns pairs judged contradictory.
	Classify(ctx context.Context, facts []*memory.Fact) ([]ConflictPair, error)

	// Close releases any resources held by the classifier.
	Close() error
}
