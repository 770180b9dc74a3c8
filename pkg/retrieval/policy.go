package retrieval

import (
	"sort"

	"github.com/nickyai/memex/pkg/memory"
)

const (
	// canonConfidenceGate is the minimum confidence a canon fact needs to
	// surface at all, regardless of zone.
	canonConfidenceGate = 60

	// podcastRumorCap bounds how many rumor facts a moderated podcast
	// retrieval may admit.
	podcastRumorCap = 3

	// podcastRumorDisplayConfidence caps the displayed confidence of
	// rumors admitted under podcast moderation. The stored fact is
	// untouched.
	podcastRumorDisplayConfidence = 40
)

// InTheaterZone reports whether the persona is performing: rumor-lane
// material may only surface on stage.
func InTheaterZone(mode memory.Mode, heat int) bool {
	return heat > 70 || mode == memory.ModePodcast || mode == memory.ModeStreaming
}

// rejection records why a candidate was excluded from the admitted pool.
type rejection struct {
	factID string
	reason string
}

// applyLanePolicy filters merged candidates by lifecycle status and lane.
// Deprecated and ambiguous facts never surface. Canon facts need
// confidence at or above the gate. Rumor facts need the theater zone, and
// a podcast running cool admits at most podcastRumorCap of them, display
// confidence capped.
func applyLanePolicy(candidates []*candidate, rctx memory.RetrievalContext) ([]*candidate, []rejection) {
	zone := InTheaterZone(rctx.Mode, rctx.Heat)
	moderated := rctx.Mode == memory.ModePodcast && rctx.Heat <= 70

	var admitted []*candidate
	var rejected []rejection
	var rumors []*candidate

	for _, cand := range candidates {
		fact := cand.fact
		switch {
		case fact.Status == memory.StatusDeprecated:
			rejected = append(rejected, rejection{fact.ID, "deprecated"})
		case fact.Status == memory.StatusAmbiguous:
			rejected = append(rejected, rejection{fact.ID, "ambiguous"})
		case fact.Lane == memory.LaneCanon:
			if fact.Confidence < canonConfidenceGate {
				rejected = append(rejected, rejection{fact.ID, "canon below confidence gate"})
				continue
			}
			admitted = append(admitted, cand)
		default:
			if !zone {
				rejected = append(rejected, rejection{fact.ID, "rumor outside theater zone"})
				continue
			}
			if moderated {
				rumors = append(rumors, cand)
				continue
			}
			admitted = append(admitted, cand)
		}
	}

	if len(rumors) > 0 {
		// Highest preliminary score first so the cap keeps the strongest
		// rumors. Ties break by ID for determinism.
		sort.SliceStable(rumors, func(i, j int) bool {
			si := BaseScore(rumors[i].similarity, rumors[i].fact.Importance, rumors[i].fact.Confidence)
			sj := BaseScore(rumors[j].similarity, rumors[j].fact.Importance, rumors[j].fact.Confidence)
			if si != sj {
				return si > sj
			}
			return rumors[i].fact.ID < rumors[j].fact.ID
		})

		for i, cand := range rumors {
			if i >= podcastRumorCap {
				rejected = append(rejected, rejection{cand.fact.ID, "podcast rumor cap"})
				continue
			}
			if cand.displayConfidence > podcastRumorDisplayConfidence {
				cand.displayConfidence = podcastRumorDisplayConfidence
			}
			admitted = append(admitted, cand)
		}
	}

	return admitted, rejected
}
