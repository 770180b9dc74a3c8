// Package retrieval ranks persona memory for a conversation turn. A hybrid
// ranker fans out semantic, lexical, mode, and event candidate branches
// concurrently, merges the hits, applies the lane policy, and greedily
// selects a diversified top-K. Retrieval never writes to the store.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/nickyai/memex/pkg/embeddings"
	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
	"github.com/nickyai/memex/pkg/vector"
)

const (
	// DefaultTopK is how many facts a retrieval returns when the caller
	// does not say.
	DefaultTopK = 8

	// DefaultBranchTimeout bounds each candidate branch.
	DefaultBranchTimeout = 2 * time.Second

	// DefaultOversample widens branch pulls relative to topK so policy and
	// diversity have something to choose from.
	DefaultOversample = 4
)

// Branch names, used both for provenance on ranked facts and for the
// degraded list on the result.
const (
	branchSemantic = "semantic"
	branchKeyword  = "keyword"
	branchMode     = "mode"
	branchEvent    = "event"
)

// Options tunes the ranker.
type Options struct {
	// TopK is the default result size. Zero means DefaultTopK.
	TopK int

	// MinScore stops selection once the best remaining final score falls
	// below it. Zero disables the floor.
	MinScore float64

	// BranchTimeout bounds each candidate branch. Zero means
	// DefaultBranchTimeout.
	BranchTimeout time.Duration

	// Oversample widens branch candidate pulls relative to topK. Zero
	// means DefaultOversample.
	Oversample int
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.BranchTimeout <= 0 {
		o.BranchTimeout = DefaultBranchTimeout
	}
	if o.Oversample <= 0 {
		o.Oversample = DefaultOversample
	}
	return o
}

// Ranker retrieves and ranks facts for a conversation turn.
type Ranker struct {
	store    storage.Driver
	vector   vector.Driver
	embedder embeddings.Embedder
	opts     Options
	logger   *slog.Logger
}

// NewRanker creates a ranker. The vector driver and embedder may be nil;
// the semantic branch is skipped without them.
func NewRanker(store storage.Driver, vec vector.Driver, embedder embeddings.Embedder, opts Options, logger *slog.Logger) *Ranker {
	return &Ranker{
		store:    store,
		vector:   vec,
		embedder: embedder,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Breakdown explains how a ranked fact earned its position.
type Breakdown struct {
	Similarity      float64  `json:"similarity"`
	Base            float64  `json:"base"`
	Contextual      float64  `json:"contextual"`
	Diversity       float64  `json:"diversity"`
	Final           float64  `json:"final"`
	MatchedKeywords int      `json:"matched_keywords"`
	Via             []string `json:"via"`
}

// Ranked is a selected fact with its display confidence and score
// breakdown. DisplayConfidence may be lower than the stored confidence
// when podcast moderation capped it.
type Ranked struct {
	*memory.Fact
	DisplayConfidence int       `json:"display_confidence"`
	Breakdown         Breakdown `json:"breakdown"`
}

// Result is a completed retrieval.
type Result struct {
	// Facts holds the selected facts in rank order.
	Facts []Ranked `json:"facts"`

	// Rejected counts candidates the lane policy excluded.
	Rejected int `json:"rejected"`

	// Degraded names candidate branches that failed or timed out. A
	// degraded retrieval still returns whatever the healthy branches
	// found.
	Degraded []string `json:"degraded,omitempty"`
}

// candidate carries a fact through merge, policy, and scoring.
type candidate struct {
	fact              *memory.Fact
	similarity        float64
	matchedKeywords   int
	viaSemantic       bool
	viaKeyword        bool
	viaMode           bool
	viaEvent          bool
	displayConfidence int
	base              float64
	contextual        float64
}

func (c *candidate) via() []string {
	var via []string
	if c.viaSemantic {
		via = append(via, branchSemantic)
	}
	if c.viaKeyword {
		via = append(via, branchKeyword)
	}
	if c.viaMode {
		via = append(via, branchMode)
	}
	if c.viaEvent {
		via = append(via, branchEvent)
	}
	return via
}

type branchHit struct {
	factID     string
	fact       *memory.Fact
	similarity float64
	via        string
}

type branchResult struct {
	name string
	hits []branchHit
	err  error
}

// Retrieve runs the full pipeline for one conversation turn. topK <= 0
// uses the configured default. Branch failures degrade the result rather
// than failing it; only invalid input or a store failure while loading
// candidates returns an error.
func (r *Ranker) Retrieve(ctx context.Context, rctx memory.RetrievalContext, topK int) (*Result, error) {
	if rctx.ProfileID == "" {
		return nil, fmt.Errorf("profile id is required")
	}
	if rctx.Mode == "" {
		rctx.Mode = memory.ModeChat
	}
	if !memory.ValidMode(string(rctx.Mode)) {
		return nil, fmt.Errorf("unknown mode: %q", rctx.Mode)
	}
	if rctx.Heat < memory.MinHeat {
		rctx.Heat = memory.MinHeat
	}
	if rctx.Heat > memory.MaxHeat {
		rctx.Heat = memory.MaxHeat
	}
	if rctx.Now.IsZero() {
		rctx.Now = time.Now().UTC()
	}
	if topK <= 0 {
		topK = r.opts.TopK
	}

	terms := queryTerms(rctx.Query)
	pull := topK * r.opts.Oversample

	merged := make(map[string]*candidate)
	var degraded []string
	for res := range r.fanOut(ctx, rctx, terms, pull) {
		if res.err != nil {
			r.logger.Warn("retrieval branch failed", "branch", res.name, "error", res.err)
			degraded = append(degraded, res.name)
			continue
		}
		for _, hit := range res.hits {
			cand, ok := merged[hit.factID]
			if !ok {
				cand = &candidate{}
				merged[hit.factID] = cand
			}
			if cand.fact == nil && hit.fact != nil {
				cand.fact = hit.fact
			}
			if hit.similarity > cand.similarity {
				cand.similarity = hit.similarity
			}
			switch hit.via {
			case branchSemantic:
				cand.viaSemantic = true
			case branchKeyword:
				cand.viaKeyword = true
			case branchMode:
				cand.viaMode = true
			case branchEvent:
				cand.viaEvent = true
			}
		}
	}
	sort.Strings(degraded)

	// Vector hits arrive as bare IDs; load the rest of the fact. Hits
	// whose fact has since been deleted are dropped. Iterate in ID order
	// so ties later stay deterministic.
	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	candidates := make([]*candidate, 0, len(ids))
	for _, id := range ids {
		cand := merged[id]
		if cand.fact == nil {
			fact, err := r.store.GetFact(ctx, id)
			if err != nil {
				if storage.IsNotFound(err) {
					r.logger.Debug("dropping vector hit with no stored fact", "fact_id", id)
					continue
				}
				return nil, fmt.Errorf("loading fact %s: %w", id, err)
			}
			cand.fact = fact
		}
		cand.displayConfidence = cand.fact.Confidence
		cand.matchedKeywords = matchedKeywordCount(cand.fact, terms)
		candidates = append(candidates, cand)
	}

	admitted, rejected := applyLanePolicy(candidates, rctx)
	for _, rej := range rejected {
		r.logger.Debug("candidate rejected", "fact_id", rej.factID, "reason", rej.reason)
	}

	intent := DetectIntent(rctx.Query)
	for _, cand := range admitted {
		cand.base = BaseScore(cand.similarity, cand.fact.Importance, cand.fact.Confidence)
		cand.contextual = ContextualRelevance(cand.fact, rctx, intent, cand.matchedKeywords)
	}

	ranked := r.selectDiversified(admitted, topK)

	r.logger.Debug("retrieval complete",
		"profile_id", rctx.ProfileID,
		"intent", intent,
		"candidates", len(candidates),
		"selected", len(ranked),
		"rejected", len(rejected),
		"degraded", degraded,
	)

	return &Result{
		Facts:    ranked,
		Rejected: len(rejected),
		Degraded: degraded,
	}, nil
}

// fanOut launches the candidate branches, each under its own timeout, and
// returns a channel that closes once all launched branches report.
func (r *Ranker) fanOut(ctx context.Context, rctx memory.RetrievalContext, terms []string, pull int) <-chan branchResult {
	resultCh := make(chan branchResult, 4)
	var wg sync.WaitGroup

	launch := func(name string, fn func(context.Context) ([]branchHit, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bctx, cancel := context.WithTimeout(ctx, r.opts.BranchTimeout)
			defer cancel()
			hits, err := fn(bctx)
			resultCh <- branchResult{name: name, hits: hits, err: err}
		}()
	}

	if rctx.Query == "" {
		r.logger.Debug("query branches skipped for empty query")
	} else {
		if r.embedder == nil || r.vector == nil {
			r.logger.Debug("semantic branch skipped, no embedder or vector driver")
		} else {
			launch(branchSemantic, func(bctx context.Context) ([]branchHit, error) {
				return r.semanticBranch(bctx, rctx, pull)
			})
		}
		if len(terms) > 0 {
			launch(branchKeyword, func(bctx context.Context) ([]branchHit, error) {
				return r.keywordBranch(bctx, rctx, terms, pull)
			})
			launch(branchEvent, func(bctx context.Context) ([]branchHit, error) {
				return r.eventBranch(bctx, rctx, terms, pull)
			})
		}
	}
	launch(branchMode, func(bctx context.Context) ([]branchHit, error) {
		return r.modeBranch(bctx, rctx, pull)
	})

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	return resultCh
}

func (r *Ranker) semanticBranch(ctx context.Context, rctx memory.RetrievalContext, pull int) ([]branchHit, error) {
	embedding, err := r.embedder.Embed(ctx, rctx.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.vector.Query(ctx, rctx.ProfileID, embedding, pull)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	hits := make([]branchHit, 0, len(matches))
	for _, match := range matches {
		hits = append(hits, branchHit{
			factID:     match.ID,
			similarity: float64(match.Score),
			via:        branchSemantic,
		})
	}
	return hits, nil
}

func (r *Ranker) keywordBranch(ctx context.Context, rctx memory.RetrievalContext, terms []string, pull int) ([]branchHit, error) {
	facts, err := r.store.SearchFacts(ctx, rctx.ProfileID, terms, pull)
	if err != nil {
		return nil, fmt.Errorf("searching facts: %w", err)
	}

	hits := make([]branchHit, 0, len(facts))
	for _, fact := range facts {
		hits = append(hits, branchHit{
			factID:     fact.ID,
			fact:       fact,
			similarity: KeywordOnlyScore,
			via:        branchKeyword,
		})
	}
	return hits, nil
}

// modeBranch pulls facts keyword-tagged with the current mode. They enter
// with zero similarity and rely on contextual relevance to earn a slot.
func (r *Ranker) modeBranch(ctx context.Context, rctx memory.RetrievalContext, pull int) ([]branchHit, error) {
	facts, err := r.store.ListFacts(ctx, storage.FactQuery{
		ProfileID: rctx.ProfileID,
		Keyword:   string(rctx.Mode),
		Limit:     pull,
	})
	if err != nil {
		return nil, fmt.Errorf("listing mode facts: %w", err)
	}

	hits := make([]branchHit, 0, len(facts))
	for _, fact := range facts {
		hits = append(hits, branchHit{
			factID: fact.ID,
			fact:   fact,
			via:    branchMode,
		})
	}
	return hits, nil
}

// eventBranch pulls facts linked to events whose canonical name shares a
// term with the query.
func (r *Ranker) eventBranch(ctx context.Context, rctx memory.RetrievalContext, terms []string, pull int) ([]branchHit, error) {
	events, err := r.store.ListEvents(ctx, rctx.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	termSet := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		termSet[term] = struct{}{}
	}

	var hits []branchHit
	for _, event := range events {
		if !eventNameMatches(event.CanonicalName, termSet) {
			continue
		}

		facts, err := r.store.FactsForEvent(ctx, event.ID)
		if err != nil {
			return nil, fmt.Errorf("loading facts for event %s: %w", event.ID, err)
		}
		for _, fact := range facts {
			hits = append(hits, branchHit{
				factID: fact.ID,
				fact:   fact,
				via:    branchEvent,
			})
		}
		if len(hits) >= pull {
			break
		}
	}
	return hits, nil
}

func eventNameMatches(name string, terms map[string]struct{}) bool {
	for _, token := range queryTerms(name) {
		if _, ok := terms[token]; ok {
			return true
		}
	}
	return false
}

// selectDiversified greedily picks the candidate with the highest final
// score against the current selection, so near-duplicates pay a growing
// diversity penalty as their kind fills up. Ties break by support count,
// then last-seen recency, then ID.
func (r *Ranker) selectDiversified(pool []*candidate, topK int) []Ranked {
	ranked := make([]Ranked, 0, topK)
	var selectedFacts []*memory.Fact

	for len(ranked) < topK && len(pool) > 0 {
		bestIdx := -1
		var bestFinal, bestDiversity float64
		for i, cand := range pool {
			diversity := DiversityScore(cand.fact, selectedFacts)
			final := FinalScore(cand.base, diversity, cand.contextual)
			if bestIdx == -1 || final > bestFinal || (final == bestFinal && preferCandidate(cand, pool[bestIdx])) {
				bestIdx = i
				bestFinal = final
				bestDiversity = diversity
			}
		}

		if r.opts.MinScore > 0 && bestFinal < r.opts.MinScore {
			break
		}

		best := pool[bestIdx]
		ranked = append(ranked, Ranked{
			Fact:              best.fact,
			DisplayConfidence: best.displayConfidence,
			Breakdown: Breakdown{
				Similarity:      best.similarity,
				Base:            best.base,
				Contextual:      best.contextual,
				Diversity:       bestDiversity,
				Final:           bestFinal,
				MatchedKeywords: best.matchedKeywords,
				Via:             best.via(),
			},
		})
		selectedFacts = append(selectedFacts, best.fact)
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}

	return ranked
}

func preferCandidate(a, b *candidate) bool {
	if a.fact.SupportCount != b.fact.SupportCount {
		return a.fact.SupportCount > b.fact.SupportCount
	}
	if !a.fact.LastSeenAt.Equal(b.fact.LastSeenAt) {
		return a.fact.LastSeenAt.After(b.fact.LastSeenAt)
	}
	return a.fact.ID < b.fact.ID
}

func matchedKeywordCount(fact *memory.Fact, terms []string) int {
	count := 0
	for _, term := range terms {
		if fact.HasKeyword(term) {
			count++
		}
	}
	return count
}

// queryTerms lowercases and tokenizes free text on non-alphanumeric
// boundaries, deduplicates, and drops tokens shorter than three runes.
func queryTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if utf8.RuneCountInString(field) < 3 {
			continue
		}
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		terms = append(terms, field)
	}
	return terms
}
