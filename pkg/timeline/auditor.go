// Package timeline audits facts against the events they are linked to,
// flagging memories whose tense no longer matches where the event sits
// relative to now.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nickyai/memex/pkg/eventstream"
	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
)

// Position is where an event sits relative to the audit clock.
type Position string

const (
	PositionFuture  Position = "future"
	PositionPast    Position = "past"
	PositionPresent Position = "present"
	PositionUnknown Position = "unknown"
)

// Orientation is the tense a fact's wording reads as.
type Orientation string

const (
	OrientationFuture    Orientation = "future"
	OrientationPast      Orientation = "past"
	OrientationAmbiguous Orientation = "ambiguous"
	OrientationNone      Orientation = "none"
)

// Conflict names a detected mismatch between fact and event.
type Conflict string

const (
	// ConflictStaleFuture marks a fact still talking about a past event
	// as upcoming.
	ConflictStaleFuture Conflict = "stale-future"

	// ConflictStalePast marks a fact talking about a future event as
	// already over.
	ConflictStalePast Conflict = "stale-past"

	// ConflictInternal marks facts of an undatable event that disagree
	// with each other about its tense.
	ConflictInternal Conflict = "internal-disagreement"
)

// presentWindow is how far an event date may sit from the audit clock
// and still count as happening now.
const presentWindow = 24 * time.Hour

// auditConfidencePenalty and auditConfidenceFloor shape the confidence
// drop applied to flagged facts.
const (
	auditConfidencePenalty = 15
	auditConfidenceFloor   = 10
)

// dateLayouts are tried in order against EventDate. Dates are captured
// as free text, so parsing is best-effort.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/2006",
}

var futureCues = []string{
	"upcoming", "will", "next week", "next month", "soon", "about to",
	"planning", "scheduled", "is going to", "launching", "releases on",
	"premieres",
}

var pastCues = []string{
	"ago", "released", "launched", "already", "last week", "last month",
	"wrapped", "finished", "came out", "happened", "was held", "premiered",
}

// EventPosition parses an event date and places it relative to now.
// Unparsable or empty dates are Unknown.
func EventPosition(eventDate string, now time.Time) Position {
	eventDate = strings.TrimSpace(eventDate)
	if eventDate == "" {
		return PositionUnknown
	}

	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, eventDate)
		if err != nil {
			continue
		}
		switch {
		case parsed.After(now.Add(presentWindow)):
			return PositionFuture
		case parsed.Before(now.Add(-presentWindow)):
			return PositionPast
		default:
			return PositionPresent
		}
	}
	return PositionUnknown
}

// FactOrientation reads the tense of a fact from cue words in its
// content and temporal context. Facts with cues pointing both ways are
// Ambiguous and exempt from flagging.
func FactOrientation(fact *memory.Fact) Orientation {
	text := strings.ToLower(fact.Content + " " + fact.TemporalContext)

	future := containsAny(text, futureCues)
	past := containsAny(text, pastCues)
	switch {
	case future && past:
		return OrientationAmbiguous
	case future:
		return OrientationFuture
	case past:
		return OrientationPast
	default:
		return OrientationNone
	}
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

// Options control a single audit run.
type Options struct {
	ProfileID string

	// DryRun reports what would be flagged without mutating any fact.
	DryRun bool

	// Now overrides the audit clock. Zero means time.Now.
	Now time.Time
}

// Flag records one fact/event mismatch. Applied is false when the
// mutation was skipped; SkipReason says why.
type Flag struct {
	EventID       string        `json:"event_id"`
	EventName     string        `json:"event_name"`
	FactID        string        `json:"fact_id"`
	Excerpt       string        `json:"excerpt"`
	Conflict      Conflict      `json:"conflict"`
	Orientation   Orientation   `json:"orientation"`
	OldStatus     memory.Status `json:"old_status"`
	NewStatus     memory.Status `json:"new_status"`
	OldConfidence int           `json:"old_confidence"`
	NewConfidence int           `json:"new_confidence"`
	Note          string        `json:"note"`
	Applied       bool          `json:"applied"`
	SkipReason    string        `json:"skip_reason,omitempty"`
}

// Skip records an event the audit looked at but did not act on.
type Skip struct {
	EventID string `json:"event_id"`
	Name    string `json:"name"`
	Reason  string `json:"reason"`
}

// Report summarizes one audit run.
type Report struct {
	ProfileID       string `json:"profile_id"`
	DryRun          bool   `json:"dry_run"`
	InspectedEvents int    `json:"inspected_events"`
	InspectedFacts  int    `json:"inspected_facts"`
	Flagged         []Flag `json:"flagged"`
	SkippedEvents   []Skip `json:"skipped_events,omitempty"`
	UpdatesApplied  int    `json:"updates_applied"`
}

// Auditor walks a profile's events and flags linked facts whose tense
// contradicts the event's position in time. One audit per profile runs
// at a time; different profiles may audit concurrently.
type Auditor struct {
	store  storage.Driver
	stream eventstream.Publisher
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewAuditor creates a timeline auditor. The publisher is optional.
func NewAuditor(store storage.Driver, stream eventstream.Publisher, logger *slog.Logger) *Auditor {
	return &Auditor{
		store:    store,
		stream:   stream,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Audit runs one pass over the profile's events. Flagged facts are
// demoted to ambiguous with a confidence penalty and a provenance note;
// a rerun finds the notes already present and applies nothing, so the
// audit is idempotent.
func (a *Auditor) Audit(ctx context.Context, opts Options) (*Report, error) {
	if opts.ProfileID == "" {
		return nil, fmt.Errorf("profile id is required")
	}

	if !a.acquire(opts.ProfileID) {
		return nil, memory.ErrAuditInProgress
	}
	defer a.release(opts.ProfileID)

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	events, err := a.store.ListEvents(ctx, opts.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	report := &Report{
		ProfileID:       opts.ProfileID,
		DryRun:          opts.DryRun,
		InspectedEvents: len(events),
	}

	for _, event := range events {
		if err := a.auditEvent(ctx, report, event, now, opts.DryRun); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("timeline audit complete",
		"profile_id", opts.ProfileID,
		"dry_run", opts.DryRun,
		"events", report.InspectedEvents,
		"facts", report.InspectedFacts,
		"flagged", len(report.Flagged),
		"applied", report.UpdatesApplied,
	)

	return report, nil
}

func (a *Auditor) auditEvent(ctx context.Context, report *Report, event *memory.Event, now time.Time, dryRun bool) error {
	position := EventPosition(event.EventDate, now)

	facts, err := a.store.FactsForEvent(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("loading facts for event %s: %w", event.ID, err)
	}
	report.InspectedFacts += len(facts)

	orientations := make([]Orientation, len(facts))
	for i, fact := range facts {
		orientations[i] = FactOrientation(fact)
	}

	switch position {
	case PositionPresent:
		report.SkippedEvents = append(report.SkippedEvents, Skip{
			EventID: event.ID,
			Name:    event.CanonicalName,
			Reason:  "event in present window",
		})
		return nil

	case PositionUnknown:
		// Without a readable date the only signal is the linked facts
		// themselves. A dead-even split means they genuinely disagree;
		// anything else reads as consensus.
		futureCount, pastCount := 0, 0
		for _, orientation := range orientations {
			switch orientation {
			case OrientationFuture:
				futureCount++
			case OrientationPast:
				pastCount++
			}
		}
		if futureCount == 0 || pastCount == 0 || futureCount != pastCount {
			report.SkippedEvents = append(report.SkippedEvents, Skip{
				EventID: event.ID,
				Name:    event.CanonicalName,
				Reason:  "facts consistent",
			})
			return nil
		}
		for i, fact := range facts {
			if orientations[i] != OrientationFuture && orientations[i] != OrientationPast {
				continue
			}
			if err := a.flagFact(ctx, report, event, position, fact, orientations[i], ConflictInternal, dryRun); err != nil {
				return err
			}
		}
		return nil

	case PositionPast:
		for i, fact := range facts {
			if orientations[i] != OrientationFuture {
				continue
			}
			if err := a.flagFact(ctx, report, event, position, fact, orientations[i], ConflictStaleFuture, dryRun); err != nil {
				return err
			}
		}
		return nil

	case PositionFuture:
		for i, fact := range facts {
			if orientations[i] != OrientationPast {
				continue
			}
			if err := a.flagFact(ctx, report, event, position, fact, orientations[i], ConflictStalePast, dryRun); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (a *Auditor) flagFact(ctx context.Context, report *Report, event *memory.Event, position Position, fact *memory.Fact, orientation Orientation, conflict Conflict, dryRun bool) error {
	note := fmt.Sprintf("[timeline] %s: fact reads as %s but event %q (%s) is %s",
		conflict, orientation, event.CanonicalName, event.EventDate, position)

	flag := Flag{
		EventID:       event.ID,
		EventName:     event.CanonicalName,
		FactID:        fact.ID,
		Excerpt:       excerpt(fact.Content, 80),
		Conflict:      conflict,
		Orientation:   orientation,
		OldStatus:     fact.Status,
		NewStatus:     fact.Status,
		OldConfidence: fact.Confidence,
		NewConfidence: fact.Confidence,
		Note:          note,
	}

	switch {
	case fact.Protected:
		flag.SkipReason = "protected"

	case strings.Contains(fact.TemporalContext, note):
		flag.SkipReason = "already noted"

	case dryRun:
		flag.NewStatus = memory.StatusAmbiguous
		flag.NewConfidence = penalize(fact.Confidence)

	default:
		status := memory.StatusAmbiguous
		confidence := penalize(fact.Confidence)
		patched, err := a.store.PatchFact(ctx, fact.ID, storage.FactPatch{
			Status:     &status,
			Confidence: &confidence,
			AppendNote: note,
		})
		if err != nil {
			return fmt.Errorf("auditing fact %s: %w", fact.ID, err)
		}

		flag.NewStatus = patched.Status
		flag.NewConfidence = patched.Confidence
		flag.Applied = true
		report.UpdatesApplied++

		auditEvent := eventstream.NewFactEvent(eventstream.EventTypeFactAudited, "audit", patched.ProfileID, patched.ID)
		auditEvent.OldStatus = flag.OldStatus
		auditEvent.NewStatus = patched.Status
		auditEvent.OldConfidence = flag.OldConfidence
		auditEvent.NewConfidence = patched.Confidence
		auditEvent.Note = note
		a.publish(ctx, auditEvent)
	}

	report.Flagged = append(report.Flagged, flag)
	return nil
}

func penalize(confidence int) int {
	confidence -= auditConfidencePenalty
	if confidence < auditConfidenceFloor {
		confidence = auditConfidenceFloor
	}
	return confidence
}

func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func (a *Auditor) acquire(profileID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.inFlight[profileID] {
		return false
	}
	a.inFlight[profileID] = true
	return true
}

func (a *Auditor) release(profileID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, profileID)
}

func (a *Auditor) publish(ctx context.Context, event *eventstream.FactEvent) {
	if a.stream == nil {
		return
	}
	if err := a.stream.Publish(ctx, event); err != nil {
		a.logger.Warn("publishing fact event failed",
			"type", event.EventType, "fact_id", event.FactID, "error", err)
	}
}
