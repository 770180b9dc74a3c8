package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/nickyai/memex/pkg/memory"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1
)

// EventType names what happened to a fact.
type EventType string

const (
	EventTypeFactBoosted    EventType = "fact.boosted"
	EventTypeFactDeprecated EventType = "fact.deprecated"
	EventTypeFactProtected  EventType = "fact.protected"
	EventTypeFactResolved   EventType = "fact.resolved"
	EventTypeFactDismissed  EventType = "fact.dismissed"
	EventTypeFactAudited    EventType = "fact.audited"
	EventTypeFactIndexed    EventType = "fact.indexed"
)

// FactEvent is a transport-neutral record of a fact mutation. EventType
// says what happened to the fact; Op names the operation that caused it,
// which differs when one operation touches several facts (a resolve
// deprecates the loser and may boost the winner).
type FactEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     EventType `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	ProfileID string `json:"profile_id"`
	FactID    string `json:"fact_id"`
	Op        string `json:"op"`

	OldStatus     memory.Status `json:"old_status,omitempty"`
	NewStatus     memory.Status `json:"new_status,omitempty"`
	OldConfidence int           `json:"old_confidence"`
	NewConfidence int           `json:"new_confidence"`

	Note string `json:"note,omitempty"`
}

// NewFactEvent creates a v1 fact event with its ID and timestamp filled.
func NewFactEvent(eventType EventType, op, profileID, factID string) *FactEvent {
	return &FactEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		ProfileID:     profileID,
		FactID:        factID,
		Op:            op,
	}
}
