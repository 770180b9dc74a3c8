// Package storage defines the fact store contract implemented by the
// SQL-backed and in-memory drivers.
package storage

import (
	"context"

	"github.com/nickyai/memex/pkg/memory"
)

// Driver is the persistence contract for facts, timeline events, and their
// links. Implementations must be safe for concurrent use and must return
// normalized facts (ranges clamped, enums filled).
type Driver interface {
	// PutFact inserts the fact, or replaces the full row when the ID
	// already exists.
	PutFact(ctx context.Context, fact *memory.Fact) error

	// GetFact retrieves a fact by ID. Returns NotFoundError when absent.
	GetFact(ctx context.Context, id string) (*memory.Fact, error)

	// ListFacts returns facts matching the query, ordered by creation
	// time then ID.
	ListFacts(ctx context.Context, q FactQuery) ([]*memory.Fact, error)

	// PatchFact applies a partial update as a single atomic write and
	// returns the updated fact. Returns NotFoundError when the fact is
	// absent and memory.ErrProtectedFact when the patch would lower a
	// protected fact.
	PatchFact(ctx context.Context, id string, patch FactPatch) (*memory.Fact, error)

	// SearchFacts performs a lexical search over fact content for the
	// profile. The matching strategy is backend-specific (FTS5, tsvector,
	// token containment).
	SearchFacts(ctx context.Context, profileID string, terms []string, limit int) ([]*memory.Fact, error)

	// PutEvent inserts or replaces a timeline event.
	PutEvent(ctx context.Context, event *memory.Event) error

	// GetEvent retrieves an event by ID. Returns NotFoundError when absent.
	GetEvent(ctx context.Context, id string) (*memory.Event, error)

	// ListEvents returns all events for the profile, oldest first.
	ListEvents(ctx context.Context, profileID string) ([]*memory.Event, error)

	// LinkFact links a fact to an event. Linking twice is a no-op.
	LinkFact(ctx context.Context, eventID, factID string) error

	// FactsForEvent returns the facts linked to an event.
	FactsForEvent(ctx context.Context, eventID string) ([]*memory.Fact, error)

	// EventsForFact returns the events a fact is linked to.
	EventsForFact(ctx context.Context, factID string) ([]*memory.Event, error)

	// Stats returns fact and event counts for the profile.
	Stats(ctx context.Context, profileID string) (Stats, error)

	// Close closes the store and releases any resources.
	Close() error
}
