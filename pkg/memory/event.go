package memory

import (
	"time"

	"github.com/google/uuid"
)

// Event is a named timeline anchor that facts can link to, e.g. an album
// release or a collab stream. EventDate is free text as captured; the
// timeline auditor parses it best-effort.
type Event struct {
	ID            string    `json:"id"`
	ProfileID     string    `json:"profile_id"`
	CanonicalName string    `json:"canonical_name"`
	EventDate     string    `json:"event_date,omitempty"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewEvent creates an event with a fresh ID and creation timestamp.
func NewEvent(profileID, canonicalName string) *Event {
	return &Event{
		ID:            uuid.NewString(),
		ProfileID:     profileID,
		CanonicalName: canonicalName,
		CreatedAt:     time.Now().UTC(),
	}
}
