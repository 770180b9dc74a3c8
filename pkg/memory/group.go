package memory

import "time"

// Severity grades how urgent a contradiction group is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// GroupSource records which scan pass produced a contradiction group.
type GroupSource string

const (
	GroupSourceCanonicalKey GroupSource = "canonical-key"
	GroupSourceClassifier   GroupSource = "classifier"
)

// ContradictionGroup is a set of facts asserting conflicting things about
// the same subject. Groups are ephemeral scan output; they persist only when
// the caller tags members with the group ID.
type ContradictionGroup struct {
	ID            string      `json:"id"`
	ProfileID     string      `json:"profile_id"`
	CanonicalKey  string      `json:"canonical_key,omitempty"`
	FactIDs       []string    `json:"fact_ids"`
	PrimaryFactID string      `json:"primary_fact_id"`
	Severity      Severity    `json:"severity"`
	Explanation   string      `json:"explanation"`
	Source        GroupSource `json:"source"`
	DetectedAt    time.Time   `json:"detected_at"`
}
