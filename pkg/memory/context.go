package memory

import "time"

// Mode is the persona's active performance surface.
type Mode string

const (
	ModeChat      Mode = "chat"
	ModePodcast   Mode = "podcast"
	ModeStreaming Mode = "streaming"
	ModeDiscord   Mode = "discord"
)

const (
	// MinHeat is the resting energy level. The persona is never fully
	// calm, so heat clamps up to this floor rather than zero.
	MinHeat = 10

	MaxHeat = 100
)

// ValidMode reports whether s is a known mode.
func ValidMode(s string) bool {
	switch Mode(s) {
	case ModeChat, ModePodcast, ModeStreaming, ModeDiscord:
		return true
	}
	return false
}

// RetrievalContext carries everything a recall needs to know about the
// moment of the conversation: what was asked, where the persona is
// performing, and how spicy the room is.
type RetrievalContext struct {
	ProfileID      string `json:"profile_id"`
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	Mode           Mode   `json:"mode"`

	// Heat is the room energy level in [MinHeat,MaxHeat]. Above 70 the
	// persona is considered on stage regardless of mode.
	Heat int `json:"heat"`

	// Now anchors recency scoring and is injected so scoring stays pure.
	// Zero means time.Now at the retrieval edge.
	Now time.Time `json:"-"`
}
