package retrieval

import (
	"strings"
	"time"

	"github.com/nickyai/memex/pkg/memory"
)

// KeywordOnlyScore is the similarity stand-in for facts found only by
// lexical search, where no embedding distance exists.
const KeywordOnlyScore = 0.7

// BaseScore combines vector similarity with the fact's own weights.
// Similarity is clamped to [0,1] before weighting. The result is
// intentionally unnormalized: importance dominates, so a well-established
// fact outranks a marginally closer embedding.
func BaseScore(similarity float64, importance, confidence int) float64 {
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	return similarity*1.2 + float64(importance)*0.1 + float64(confidence)*0.001
}

// ContextualRelevance scores how well a fact fits the moment: recency,
// intent affinity, mode themes, the fact's own weights, and keyword
// matches against the query. Starts at 0.5 and is capped at 1.0. Pure:
// the clock comes from rctx.Now.
func ContextualRelevance(fact *memory.Fact, rctx memory.RetrievalContext, intent Intent, matchedKeywords int) float64 {
	score := 0.5

	if !rctx.Now.IsZero() && !fact.LastSeenAt.IsZero() {
		age := rctx.Now.Sub(fact.LastSeenAt)
		switch {
		case age < 24*time.Hour:
			score += 0.5
		case age < 7*24*time.Hour:
			score += 0.3
		case age < 30*24*time.Hour:
			score += 0.1
		}
	}

	score += intentAffinity(intent, fact.Type)

	switch hits := themeOverlap(rctx.Mode, fact.Content); {
	case hits >= 3:
		score += 0.4
	case hits == 2:
		score += 0.3
	case hits == 1:
		score += 0.2
	}

	score += float64(fact.Importance) / 100 * 0.25
	score += float64(fact.Confidence) / 100 * 0.1

	keywordBonus := 0.1 * float64(matchedKeywords)
	if keywordBonus > 0.3 {
		keywordBonus = 0.3
	}
	score += keywordBonus

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// intentAffinity is the bonus a fact type earns under a detected intent.
func intentAffinity(intent Intent, factType memory.FactType) float64 {
	switch intent {
	case IntentTellAbout:
		if factType == memory.TypeLore || factType == memory.TypeStory {
			return 0.4
		}
	case IntentOpinion:
		if factType == memory.TypePreference || factType == memory.TypeFact {
			return 0.4
		}
	case IntentRemind:
		if factType == memory.TypeContext {
			return 0.5
		}
	case IntentHowTo:
		if factType == memory.TypeFact {
			return 0.3
		}
	}
	return 0
}

// DiversityScore penalizes a candidate for resembling what is already
// selected: per selected fact, 0.1 for a shared type plus 0.2 weighted by
// keyword overlap over the larger of the two keyword sets. Floored at 0.
// An empty selection always scores 1.0.
func DiversityScore(candidate *memory.Fact, selected []*memory.Fact) float64 {
	if len(selected) == 0 {
		return 1.0
	}

	candKeywords := make(map[string]struct{}, len(candidate.Keywords))
	for _, kw := range candidate.Keywords {
		candKeywords[strings.ToLower(kw)] = struct{}{}
	}

	score := 1.0
	for _, picked := range selected {
		if picked.Type == candidate.Type {
			score -= 0.1
		}

		denom := len(candidate.Keywords)
		if len(picked.Keywords) > denom {
			denom = len(picked.Keywords)
		}
		if denom == 0 {
			continue
		}

		overlap := 0
		for _, kw := range picked.Keywords {
			if _, ok := candKeywords[strings.ToLower(kw)]; ok {
				overlap++
			}
		}
		score -= 0.2 * float64(overlap) / float64(denom)
	}

	if score < 0 {
		score = 0
	}
	return score
}

// FinalScore is the selection objective: diversity scales the base score
// while contextual relevance contributes independently.
func FinalScore(base, diversity, contextual float64) float64 {
	return base*diversity + contextual*0.3
}
