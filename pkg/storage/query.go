package storage

import (
	"strings"
	"time"

	"github.com/nickyai/memex/pkg/memory"
)

// FactQuery filters ListFacts. Zero-valued fields are ignored.
type FactQuery struct {
	ProfileID string

	Lane     memory.Lane
	Statuses []memory.Status
	Types    []memory.FactType

	// CanonicalKey selects facts with exactly this key.
	CanonicalKey string

	// HasCanonicalKey selects only facts with a non-empty canonical key.
	HasCanonicalKey bool

	// Keyword selects facts whose keyword set contains the word,
	// case-insensitively.
	Keyword string

	// GroupID selects members of a persisted contradiction group.
	GroupID string

	// MissingEmbedding selects facts that have not been indexed yet.
	MissingEmbedding bool

	Limit int
}

// Matches reports whether the fact satisfies every set filter. Shared by the
// in-memory driver and tests; SQL drivers compile the same filters to WHERE
// clauses.
func (q FactQuery) Matches(f *memory.Fact) bool {
	if q.ProfileID != "" && f.ProfileID != q.ProfileID {
		return false
	}
	if q.Lane != "" && f.Lane != q.Lane {
		return false
	}
	if len(q.Statuses) > 0 && !containsStatus(q.Statuses, f.Status) {
		return false
	}
	if len(q.Types) > 0 && !containsType(q.Types, f.Type) {
		return false
	}
	if q.CanonicalKey != "" && f.CanonicalKey != q.CanonicalKey {
		return false
	}
	if q.HasCanonicalKey && strings.TrimSpace(f.CanonicalKey) == "" {
		return false
	}
	if q.Keyword != "" && !f.HasKeyword(q.Keyword) {
		return false
	}
	if q.GroupID != "" && f.GroupID != q.GroupID {
		return false
	}
	if q.MissingEmbedding && len(f.Embedding) > 0 {
		return false
	}
	return true
}

func containsStatus(set []memory.Status, s memory.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsType(set []memory.FactType, t memory.FactType) bool {
	for _, v := range set {
		if v == t {
			return true
		}
	}
	return false
}

// FactPatch is a partial fact update. Nil fields are left untouched.
type FactPatch struct {
	Status       *memory.Status
	Confidence   *int
	Importance   *int
	Protected    *bool
	GroupID      *string
	SupportCount *int

	// TemporalContext replaces the field outright when set.
	TemporalContext *string

	// AppendNote appends a provenance note to TemporalContext on its own
	// line, unless the identical note is already present.
	AppendNote string

	Embedding  []float32
	LastSeenAt *time.Time
}

// IsZero reports whether the patch carries no changes.
func (p FactPatch) IsZero() bool {
	return p.Status == nil &&
		p.Confidence == nil &&
		p.Importance == nil &&
		p.Protected == nil &&
		p.GroupID == nil &&
		p.SupportCount == nil &&
		p.TemporalContext == nil &&
		p.AppendNote == "" &&
		p.Embedding == nil &&
		p.LastSeenAt == nil
}

// Apply mutates the fact in place per the patch, enforcing the protection
// invariant just before each lowering write. It reports whether anything
// changed. Drivers call it inside their row transaction.
func (p FactPatch) Apply(f *memory.Fact) (bool, error) {
	if err := p.checkProtected(f); err != nil {
		return false, err
	}

	changed := false

	if p.Status != nil && f.Status != *p.Status {
		f.Status = *p.Status
		changed = true
	}
	if p.Confidence != nil && f.Confidence != *p.Confidence {
		f.Confidence = *p.Confidence
		changed = true
	}
	if p.Importance != nil && f.Importance != *p.Importance {
		f.Importance = *p.Importance
		changed = true
	}
	if p.Protected != nil && f.Protected != *p.Protected {
		f.Protected = *p.Protected
		changed = true
	}
	if p.GroupID != nil && f.GroupID != *p.GroupID {
		f.GroupID = *p.GroupID
		changed = true
	}
	if p.SupportCount != nil && f.SupportCount != *p.SupportCount {
		f.SupportCount = *p.SupportCount
		changed = true
	}
	if p.TemporalContext != nil && f.TemporalContext != *p.TemporalContext {
		f.TemporalContext = *p.TemporalContext
		changed = true
	}
	if p.AppendNote != "" && !strings.Contains(f.TemporalContext, p.AppendNote) {
		if f.TemporalContext == "" {
			f.TemporalContext = p.AppendNote
		} else {
			f.TemporalContext = f.TemporalContext + "\n" + p.AppendNote
		}
		changed = true
	}
	if p.Embedding != nil {
		f.Embedding = make([]float32, len(p.Embedding))
		copy(f.Embedding, p.Embedding)
		changed = true
	}
	if p.LastSeenAt != nil && !f.LastSeenAt.Equal(*p.LastSeenAt) {
		f.LastSeenAt = *p.LastSeenAt
		changed = true
	}

	if changed {
		f.UpdatedAt = time.Now().UTC()
		f.Normalize()
	}
	return changed, nil
}

// checkProtected rejects patches that would lower a protected fact's
// confidence, retire it, or clear the protection flag.
func (p FactPatch) checkProtected(f *memory.Fact) error {
	if !f.Protected {
		return nil
	}
	if p.Confidence != nil && *p.Confidence < f.Confidence {
		return memory.ErrProtectedFact
	}
	if p.Status != nil && *p.Status != f.Status {
		return memory.ErrProtectedFact
	}
	if p.Protected != nil && !*p.Protected {
		return memory.ErrProtectedFact
	}
	return nil
}

// Stats summarizes a profile's memory population.
type Stats struct {
	Facts    int                     `json:"facts"`
	Events   int                     `json:"events"`
	ByLane   map[memory.Lane]int     `json:"by_lane"`
	ByStatus map[memory.Status]int   `json:"by_status"`
	ByType   map[memory.FactType]int `json:"by_type"`
}
