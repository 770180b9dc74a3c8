// Package memory defines the persona memory domain model: durable facts,
// timeline events, contradiction groups, and the retrieval context shared by
// the storage, retrieval, contradiction, and timeline packages.
package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FactType categorizes what kind of memory a fact holds.
type FactType string

const (
	TypeFact       FactType = "fact"
	TypePreference FactType = "preference"
	TypeLore       FactType = "lore"
	TypeContext    FactType = "context"
	TypeStory      FactType = "story"
	TypeAtomic     FactType = "atomic"
)

// Lane separates established truth from unverified chatter.
type Lane string

const (
	// LaneCanon holds established persona truth.
	LaneCanon Lane = "canon"

	// LaneRumor holds unverified or performative material.
	LaneRumor Lane = "rumor"
)

// Status is the lifecycle state of a fact.
type Status string

const (
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
	StatusAmbiguous  Status = "ambiguous"
)

const (
	MinImportance = 1
	MaxImportance = 100
	MinConfidence = 0
	MaxConfidence = 100

	DefaultImportance = 50
	DefaultConfidence = 60
)

// Fact is a single durable memory belonging to a persona profile.
type Fact struct {
	ID        string   `json:"id"`
	ProfileID string   `json:"profile_id"`
	Content   string   `json:"content"`
	Type      FactType `json:"type"`

	// Importance is a long-term salience weight in [1,100].
	Importance int `json:"importance"`

	// Confidence is a trust weight in [0,100]. Protected facts are pinned
	// at 100.
	Confidence int `json:"confidence"`

	Lane   Lane   `json:"lane"`
	Status Status `json:"status"`

	// Protected pins a fact as ground truth. Protection is one-way: no
	// operation lowers a protected fact's confidence or retires it.
	Protected bool `json:"protected"`

	// CanonicalKey groups facts that describe the same subject, e.g.
	// "nicky.hometown". Empty for facts with no canonical subject.
	CanonicalKey string `json:"canonical_key,omitempty"`

	// GroupID tags the fact as a member of a persisted contradiction group.
	GroupID string `json:"group_id,omitempty"`

	// SupportCount is how many times the fact has been independently
	// re-asserted.
	SupportCount int `json:"support_count"`

	Keywords []string `json:"keywords,omitempty"`

	// Embedding is the indexed vector for semantic recall, nil until the
	// indexer has processed the fact.
	Embedding []float32 `json:"embedding,omitempty"`

	// TemporalContext carries free-text timing notes plus provenance notes
	// appended by the timeline auditor.
	TemporalContext string `json:"temporal_context,omitempty"`

	// Source records where the fact came from (extractor, manual, seed).
	Source string `json:"source,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewFact creates a fact with defaults applied: rumor lane, active status,
// mid-range importance and confidence, timestamps set to now.
func NewFact(profileID, content string) *Fact {
	now := time.Now().UTC()
	return &Fact{
		ID:          uuid.NewString(),
		ProfileID:   profileID,
		Content:     content,
		Type:        TypeFact,
		Importance:  DefaultImportance,
		Confidence:  DefaultConfidence,
		Lane:        LaneRumor,
		Status:      StatusActive,
		FirstSeenAt: now,
		LastSeenAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Normalize clamps numeric ranges and fills zero-valued enums with defaults.
// Stores call it on read and write so out-of-range rows never escape.
func (f *Fact) Normalize() {
	f.Importance = clampInt(f.Importance, MinImportance, MaxImportance)
	f.Confidence = clampInt(f.Confidence, MinConfidence, MaxConfidence)
	if f.Protected {
		f.Confidence = MaxConfidence
	}
	if f.Type == "" {
		f.Type = TypeFact
	}
	if f.Lane == "" {
		f.Lane = LaneRumor
	}
	if f.Status == "" {
		f.Status = StatusActive
	}
	if f.SupportCount < 0 {
		f.SupportCount = 0
	}
}

// Clone returns a deep copy of the fact.
func (f *Fact) Clone() *Fact {
	if f == nil {
		return nil
	}
	out := *f
	if f.Keywords != nil {
		out.Keywords = make([]string, len(f.Keywords))
		copy(out.Keywords, f.Keywords)
	}
	if f.Embedding != nil {
		out.Embedding = make([]float32, len(f.Embedding))
		copy(out.Embedding, f.Embedding)
	}
	return &out
}

// HasKeyword reports whether the fact's keyword set contains word,
// case-insensitively.
func (f *Fact) HasKeyword(word string) bool {
	for _, k := range f.Keywords {
		if strings.EqualFold(k, word) {
			return true
		}
	}
	return false
}

// ValidFactType reports whether s is a known fact type.
func ValidFactType(s string) bool {
	switch FactType(s) {
	case TypeFact, TypePreference, TypeLore, TypeContext, TypeStory, TypeAtomic:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusActive, StatusDeprecated, StatusAmbiguous:
		return true
	}
	return false
}

// ValidLane reports whether s is a known lane.
func ValidLane(s string) bool {
	switch Lane(s) {
	case LaneCanon, LaneRumor:
		return true
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
