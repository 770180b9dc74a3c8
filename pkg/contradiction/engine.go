// Package contradiction detects conflicting facts and applies curation
// verdicts: boosting, deprecating, protecting, resolving, and dismissing.
package contradiction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nickyai/memex/pkg/classifier"
	"github.com/nickyai/memex/pkg/eventstream"
	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
)

// Engine runs contradiction scans and applies curation verdicts. The
// classifier is optional; without it scans run the canonical-key pass
// only. The publisher is optional; publish failures are logged, never
// surfaced.
type Engine struct {
	store      storage.Driver
	classifier classifier.ConflictClassifier
	stream     eventstream.Publisher
	logger     *slog.Logger
}

// NewEngine creates a contradiction engine.
func NewEngine(store storage.Driver, conflictClassifier classifier.ConflictClassifier, stream eventstream.Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		store:      store,
		classifier: conflictClassifier,
		stream:     stream,
		logger:     logger,
	}
}

// ScanResult is the outcome of one contradiction scan. Groups are
// ephemeral; persist them with TagGroup. ClassifierNote is set when the
// classifier pass could not run, so callers can tell an empty result
// from a degraded one.
type ScanResult struct {
	Groups         []memory.ContradictionGroup
	Suggestions    []memory.Suggestion
	ClassifierNote string
}

// Scan finds contradiction groups among the profile's active facts. The
// canonical-key pass groups facts sharing a key; the classifier pass
// covers the rest. A classifier failure degrades the scan to its
// canonical groups rather than failing it.
func (e *Engine) Scan(ctx context.Context, profileID string) (*ScanResult, error) {
	if profileID == "" {
		return nil, fmt.Errorf("profile id is required")
	}

	facts, err := e.store.ListFacts(ctx, storage.FactQuery{
		ProfileID: profileID,
		Statuses:  []memory.Status{memory.StatusActive},
	})
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}

	result := &ScanResult{}
	grouped := make(map[string]bool)

	byKey := make(map[string][]*memory.Fact)
	for _, fact := range facts {
		if fact.CanonicalKey == "" {
			continue
		}
		byKey[fact.CanonicalKey] = append(byKey[fact.CanonicalKey], fact)
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		members := byKey[key]
		if len(members) < 2 {
			continue
		}

		explanation := fmt.Sprintf("%d active facts share canonical key %q", len(members), key)
		result.Groups = append(result.Groups, buildGroup(profileID, key, members, memory.GroupSourceCanonicalKey, explanation))
		for _, member := range members {
			grouped[member.ID] = true
		}
	}

	if e.classifier != nil {
		remaining := make([]*memory.Fact, 0, len(facts))
		for _, fact := range facts {
			if !grouped[fact.ID] {
				remaining = append(remaining, fact)
			}
		}

		if len(remaining) >= 2 {
			pairs, err := e.classifier.Classify(ctx, remaining)
			if err != nil {
				e.logger.Warn("conflict classifier failed", "profile_id", profileID, "error", err)
				result.ClassifierNote = fmt.Sprintf("classifier unavailable: %v", err)
			} else {
				result.Groups = append(result.Groups, classifierGroups(profileID, remaining, pairs)...)
			}
		}
	}

	factByID := make(map[string]*memory.Fact, len(facts))
	for _, fact := range facts {
		factByID[fact.ID] = fact
	}
	result.Suggestions = buildSuggestions(result.Groups, factByID)

	e.logger.Debug("contradiction scan complete",
		"profile_id", profileID,
		"facts", len(facts),
		"groups", len(result.Groups),
		"suggestions", len(result.Suggestions),
	)

	return result, nil
}

// Resolution is the outcome of resolving a contested pair.
type Resolution struct {
	Winner *memory.Fact `json:"winner"`
	Loser  *memory.Fact `json:"loser"`

	// WinnerBoosted reports whether the winner's confidence was raised.
	// That happens only when it became the last active member of the
	// contested set.
	WinnerBoosted bool `json:"winner_boosted"`
}

// Resolve deprecates the loser. The winner is boosted only if it is now
// the sole active member of the contested set, so ongoing disputes do
// not inflate confidence.
func (e *Engine) Resolve(ctx context.Context, winnerID, loserID string) (*Resolution, error) {
	if winnerID == loserID {
		return nil, fmt.Errorf("winner and loser must differ")
	}

	winner, err := e.store.GetFact(ctx, winnerID)
	if err != nil {
		return nil, fmt.Errorf("loading winner: %w", err)
	}
	loser, err := e.store.GetFact(ctx, loserID)
	if err != nil {
		return nil, fmt.Errorf("loading loser: %w", err)
	}
	if loser.Protected {
		return nil, memory.ErrProtectedFact
	}

	oldStatus := loser.Status
	oldConfidence := loser.Confidence
	status := memory.StatusDeprecated
	loser, err = e.store.PatchFact(ctx, loserID, storage.FactPatch{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("deprecating loser: %w", err)
	}

	event := eventstream.NewFactEvent(eventstream.EventTypeFactResolved, "resolve", loser.ProfileID, loser.ID)
	event.OldStatus = oldStatus
	event.NewStatus = loser.Status
	event.OldConfidence = oldConfidence
	event.NewConfidence = loser.Confidence
	event.Note = fmt.Sprintf("resolved in favor of %s", winnerID)
	e.publish(ctx, event)

	boosted := false
	if sameContest(winner, loser) {
		last, err := e.lastActiveMember(ctx, winner)
		if err != nil {
			return nil, err
		}
		if last {
			winner, boosted, err = e.boost(ctx, winner, "resolve")
			if err != nil {
				return nil, err
			}
		}
	}

	return &Resolution{
		Winner:        winner,
		Loser:         loser,
		WinnerBoosted: boosted,
	}, nil
}

// Boost raises a fact's confidence one rung up the ladder: below 85 to
// 85, then 90, 95, 100. Already at 100 it is a no-op with no event.
func (e *Engine) Boost(ctx context.Context, id string) (*memory.Fact, error) {
	fact, err := e.store.GetFact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading fact: %w", err)
	}

	fact, _, err = e.boost(ctx, fact, "boost")
	return fact, err
}

// Deprecate retires a fact. Protected facts cannot be deprecated.
func (e *Engine) Deprecate(ctx context.Context, id string) (*memory.Fact, error) {
	fact, err := e.store.GetFact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading fact: %w", err)
	}
	if fact.Protected {
		return nil, memory.ErrProtectedFact
	}
	if fact.Status == memory.StatusDeprecated {
		return fact, nil
	}

	oldStatus := fact.Status
	status := memory.StatusDeprecated
	patched, err := e.store.PatchFact(ctx, id, storage.FactPatch{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("deprecating fact: %w", err)
	}

	event := eventstream.NewFactEvent(eventstream.EventTypeFactDeprecated, "deprecate", patched.ProfileID, patched.ID)
	event.OldStatus = oldStatus
	event.NewStatus = patched.Status
	event.OldConfidence = fact.Confidence
	event.NewConfidence = patched.Confidence
	e.publish(ctx, event)

	return patched, nil
}

// Protect pins a fact as ground truth: Protected plus confidence 100.
// Protection is one-way; nothing in the engine undoes it.
func (e *Engine) Protect(ctx context.Context, id string) (*memory.Fact, error) {
	fact, err := e.store.GetFact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading fact: %w", err)
	}
	if fact.Protected {
		return fact, nil
	}

	oldConfidence := fact.Confidence
	protected := true
	confidence := memory.MaxConfidence
	patched, err := e.store.PatchFact(ctx, id, storage.FactPatch{
		Protected:  &protected,
		Confidence: &confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("protecting fact: %w", err)
	}

	event := eventstream.NewFactEvent(eventstream.EventTypeFactProtected, "protect", patched.ProfileID, patched.ID)
	event.OldStatus = fact.Status
	event.NewStatus = patched.Status
	event.OldConfidence = oldConfidence
	event.NewConfidence = patched.Confidence
	e.publish(ctx, event)

	return patched, nil
}

// DismissGroup drops every non-protected member of a persisted group to
// confidence 1, without touching status. Protected members are skipped
// with a warning. Returns how many members were dismissed.
func (e *Engine) DismissGroup(ctx context.Context, profileID, groupID string) (int, error) {
	if groupID == "" {
		return 0, fmt.Errorf("group id is required")
	}

	members, err := e.store.ListFacts(ctx, storage.FactQuery{
		ProfileID: profileID,
		GroupID:   groupID,
	})
	if err != nil {
		return 0, fmt.Errorf("listing group members: %w", err)
	}

	dismissed := 0
	for _, member := range members {
		if member.Protected {
			e.logger.Warn("skipping protected fact in dismissal",
				"fact_id", member.ID, "group_id", groupID)
			continue
		}

		oldConfidence := member.Confidence
		confidence := 1
		patched, err := e.store.PatchFact(ctx, member.ID, storage.FactPatch{Confidence: &confidence})
		if err != nil {
			return dismissed, fmt.Errorf("dismissing fact %s: %w", member.ID, err)
		}
		dismissed++

		if oldConfidence != patched.Confidence {
			event := eventstream.NewFactEvent(eventstream.EventTypeFactDismissed, "dismiss", patched.ProfileID, patched.ID)
			event.OldStatus = patched.Status
			event.NewStatus = patched.Status
			event.OldConfidence = oldConfidence
			event.NewConfidence = patched.Confidence
			e.publish(ctx, event)
		}
	}

	return dismissed, nil
}

// TagGroup persists an ephemeral scan group by writing its ID onto every
// member fact, making the group addressable by DismissGroup later.
func (e *Engine) TagGroup(ctx context.Context, group memory.ContradictionGroup) error {
	if group.ID == "" {
		return fmt.Errorf("group id is required")
	}

	for _, factID := range group.FactIDs {
		groupID := group.ID
		if _, err := e.store.PatchFact(ctx, factID, storage.FactPatch{GroupID: &groupID}); err != nil {
			return fmt.Errorf("tagging fact %s: %w", factID, err)
		}
	}
	return nil
}

// boost applies the confidence ladder to an already-loaded fact. Returns
// the fact, whether it changed, and publishes on change.
func (e *Engine) boost(ctx context.Context, fact *memory.Fact, op string) (*memory.Fact, bool, error) {
	if fact.Confidence >= memory.MaxConfidence {
		return fact, false, nil
	}

	oldConfidence := fact.Confidence
	confidence := nextBoost(fact.Confidence)
	patched, err := e.store.PatchFact(ctx, fact.ID, storage.FactPatch{Confidence: &confidence})
	if err != nil {
		return nil, false, fmt.Errorf("boosting fact: %w", err)
	}

	event := eventstream.NewFactEvent(eventstream.EventTypeFactBoosted, op, patched.ProfileID, patched.ID)
	event.OldStatus = patched.Status
	event.NewStatus = patched.Status
	event.OldConfidence = oldConfidence
	event.NewConfidence = patched.Confidence
	e.publish(ctx, event)

	return patched, true, nil
}

// nextBoost is the confidence ladder.
func nextBoost(confidence int) int {
	switch {
	case confidence < 85:
		return 85
	case confidence < 90:
		return 90
	case confidence < 95:
		return 95
	default:
		return 100
	}
}

// sameContest reports whether two facts belong to the same contested
// set: a shared non-empty canonical key or a shared non-empty group.
func sameContest(a, b *memory.Fact) bool {
	if a.CanonicalKey != "" && a.CanonicalKey == b.CanonicalKey {
		return true
	}
	if a.GroupID != "" && a.GroupID == b.GroupID {
		return true
	}
	return false
}

// lastActiveMember reports whether the fact is the only remaining active
// member of its contested set.
func (e *Engine) lastActiveMember(ctx context.Context, fact *memory.Fact) (bool, error) {
	query := storage.FactQuery{
		ProfileID: fact.ProfileID,
		Statuses:  []memory.Status{memory.StatusActive},
	}
	switch {
	case fact.CanonicalKey != "":
		query.CanonicalKey = fact.CanonicalKey
	case fact.GroupID != "":
		query.GroupID = fact.GroupID
	default:
		return false, nil
	}

	members, err := e.store.ListFacts(ctx, query)
	if err != nil {
		return false, fmt.Errorf("listing contested set: %w", err)
	}

	return len(members) == 1 && members[0].ID == fact.ID, nil
}

func (e *Engine) publish(ctx context.Context, event *eventstream.FactEvent) {
	if e.stream == nil {
		return
	}
	if err := e.stream.Publish(ctx, event); err != nil {
		e.logger.Warn("publishing fact event failed",
			"type", event.EventType, "fact_id", event.FactID, "error", err)
	}
}

// buildGroup assembles a contradiction group from its members. The
// primary is the highest-confidence member, ties broken by support
// count, then earliest creation.
func buildGroup(profileID, canonicalKey string, members []*memory.Fact, source memory.GroupSource, explanation string) memory.ContradictionGroup {
	primary := members[0]
	for _, member := range members[1:] {
		switch {
		case member.Confidence != primary.Confidence:
			if member.Confidence > primary.Confidence {
				primary = member
			}
		case member.SupportCount != primary.SupportCount:
			if member.SupportCount > primary.SupportCount {
				primary = member
			}
		case member.CreatedAt.Before(primary.CreatedAt):
			primary = member
		}
	}

	factIDs := make([]string, 0, len(members))
	for _, member := range members {
		factIDs = append(factIDs, member.ID)
	}
	sort.Strings(factIDs)

	return memory.ContradictionGroup{
		ID:            uuid.NewString(),
		ProfileID:     profileID,
		CanonicalKey:  canonicalKey,
		FactIDs:       factIDs,
		PrimaryFactID: primary.ID,
		Severity:      groupSeverity(members),
		Explanation:   explanation,
		Source:        source,
		DetectedAt:    time.Now().UTC(),
	}
}

// groupSeverity grades a group: high for three or more members or a
// confidence spread of 40 and up, medium for a spread of 15 and up.
func groupSeverity(members []*memory.Fact) memory.Severity {
	minConf := members[0].Confidence
	maxConf := members[0].Confidence
	for _, member := range members[1:] {
		if member.Confidence < minConf {
			minConf = member.Confidence
		}
		if member.Confidence > maxConf {
			maxConf = member.Confidence
		}
	}
	spread := maxConf - minConf

	switch {
	case len(members) >= 3 || spread >= 40:
		return memory.SeverityHigh
	case spread >= 15:
		return memory.SeverityMedium
	default:
		return memory.SeverityLow
	}
}

// classifierGroups union-finds conflict pairs into groups. Pairs naming
// unknown facts are dropped.
func classifierGroups(profileID string, facts []*memory.Fact, pairs []classifier.ConflictPair) []memory.ContradictionGroup {
	factByID := make(map[string]*memory.Fact, len(facts))
	for _, fact := range facts {
		factByID[fact.ID] = fact
	}

	parent := make(map[string]string)
	var find func(string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	reasons := make(map[string][]string)
	valid := 0
	for _, pair := range pairs {
		if pair.FactAID == pair.FactBID {
			continue
		}
		if factByID[pair.FactAID] == nil || factByID[pair.FactBID] == nil {
			continue
		}
		if _, ok := parent[pair.FactAID]; !ok {
			parent[pair.FactAID] = pair.FactAID
		}
		if _, ok := parent[pair.FactBID]; !ok {
			parent[pair.FactBID] = pair.FactBID
		}
		union(pair.FactAID, pair.FactBID)
		valid++
	}
	if valid == 0 {
		return nil
	}

	// Collect reasons after unions settle so each lands on its final root.
	for _, pair := range pairs {
		if factByID[pair.FactAID] == nil || factByID[pair.FactBID] == nil || pair.FactAID == pair.FactBID {
			continue
		}
		root := find(pair.FactAID)
		if pair.Reason != "" && !contains(reasons[root], pair.Reason) {
			reasons[root] = append(reasons[root], pair.Reason)
		}
	}

	componentIDs := make(map[string][]string)
	for id := range parent {
		root := find(id)
		componentIDs[root] = append(componentIDs[root], id)
	}

	roots := make([]string, 0, len(componentIDs))
	for root := range componentIDs {
		roots = append(roots, root)
	}
	// Order groups by their smallest member ID for determinism.
	sort.Slice(roots, func(i, j int) bool {
		return smallest(componentIDs[roots[i]]) < smallest(componentIDs[roots[j]])
	})

	groups := make([]memory.ContradictionGroup, 0, len(roots))
	for _, root := range roots {
		ids := componentIDs[root]
		if len(ids) < 2 {
			continue
		}

		members := make([]*memory.Fact, 0, len(ids))
		for _, id := range ids {
			members = append(members, factByID[id])
		}

		explanation := strings.Join(reasons[root], "; ")
		if explanation == "" {
			explanation = "classifier flagged these facts as conflicting"
		}
		groups = append(groups, buildGroup(profileID, "", members, memory.GroupSourceClassifier, explanation))
	}
	return groups
}

// buildSuggestions derives curation hints from the scan's groups: flag
// high-severity groups for training, nudge under-weighted primaries up,
// and tag the non-primary members as contested.
func buildSuggestions(groups []memory.ContradictionGroup, factByID map[string]*memory.Fact) []memory.Suggestion {
	var suggestions []memory.Suggestion
	for _, group := range groups {
		if group.Severity == memory.SeverityHigh {
			suggestions = append(suggestions, memory.FlagForTraining{
				FactID: group.PrimaryFactID,
				Reason: group.Explanation,
			})
		}

		if primary := factByID[group.PrimaryFactID]; primary != nil && primary.Importance < 80 {
			suggestions = append(suggestions, memory.BoostImportance{
				FactID: group.PrimaryFactID,
				Delta:  5,
			})
		}

		for _, factID := range group.FactIDs {
			if factID == group.PrimaryFactID {
				continue
			}
			suggestions = append(suggestions, memory.AddTag{
				FactID: factID,
				Tag:    "contested",
			})
		}
	}
	return suggestions
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func smallest(ids []string) string {
	out := ids[0]
	for _, id := range ids[1:] {
		if id < out {
			out = id
		}
	}
	return out
}
