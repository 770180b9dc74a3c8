package retrieval_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/retrieval"
)

var _ = Describe("Scoring", func() {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	Describe("BaseScore", func() {
		It("weights similarity, importance, and confidence", func() {
			Expect(retrieval.BaseScore(0.5, 50, 60)).To(BeNumerically("~", 0.5*1.2+5.0+0.06, 1e-9))
		})

		It("clamps similarity above 1", func() {
			Expect(retrieval.BaseScore(2.0, 10, 0)).To(BeNumerically("~", 1.2+1.0, 1e-9))
		})

		It("clamps similarity below 0", func() {
			Expect(retrieval.BaseScore(-0.5, 10, 0)).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("lets importance dominate similarity", func() {
			heavy := retrieval.BaseScore(0.1, 90, 50)
			close := retrieval.BaseScore(0.99, 30, 50)
			Expect(heavy).To(BeNumerically(">", close))
		})
	})

	Describe("ContextualRelevance", func() {
		newFact := func(mut func(*memory.Fact)) *memory.Fact {
			fact := &memory.Fact{
				Type:       memory.TypeFact,
				Importance: 0,
				Confidence: 0,
				LastSeenAt: now.Add(-60 * 24 * time.Hour),
			}
			if mut != nil {
				mut(fact)
			}
			return fact
		}
		rctx := memory.RetrievalContext{ProfileID: "nicky", Mode: memory.ModeChat, Now: now}

		It("starts at the 0.5 floor", func() {
			score := retrieval.ContextualRelevance(newFact(nil), rctx, retrieval.IntentGeneral, 0)
			Expect(score).To(BeNumerically("~", 0.5, 1e-9))
		})

		It("grants the full recency boost inside 24 hours", func() {
			fact := newFact(func(f *memory.Fact) { f.LastSeenAt = now.Add(-1 * time.Hour) })
			score := retrieval.ContextualRelevance(fact, rctx, retrieval.IntentGeneral, 0)
			Expect(score).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("grants the mid recency boost inside 7 days", func() {
			fact := newFact(func(f *memory.Fact) { f.LastSeenAt = now.Add(-3 * 24 * time.Hour) })
			score := retrieval.ContextualRelevance(fact, rctx, retrieval.IntentGeneral, 0)
			Expect(score).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("grants the small recency boost inside 30 days", func() {
			fact := newFact(func(f *memory.Fact) { f.LastSeenAt = now.Add(-20 * 24 * time.Hour) })
			score := retrieval.ContextualRelevance(fact, rctx, retrieval.IntentGeneral, 0)
			Expect(score).To(BeNumerically("~", 0.6, 1e-9))
		})

		DescribeTable("applies the intent type affinity",
			func(intent retrieval.Intent, factType memory.FactType, expected float64) {
				fact := newFact(func(f *memory.Fact) { f.Type = factType })
				score := retrieval.ContextualRelevance(fact, rctx, intent, 0)
				Expect(score).To(BeNumerically("~", expected, 1e-9))
			},
			Entry("tell_about favors lore", retrieval.IntentTellAbout, memory.TypeLore, 0.9),
			Entry("tell_about favors stories", retrieval.IntentTellAbout, memory.TypeStory, 0.9),
			Entry("tell_about skips atomic facts", retrieval.IntentTellAbout, memory.TypeAtomic, 0.5),
			Entry("opinion favors preferences", retrieval.IntentOpinion, memory.TypePreference, 0.9),
			Entry("opinion favors facts", retrieval.IntentOpinion, memory.TypeFact, 0.9),
			Entry("remind favors context", retrieval.IntentRemind, memory.TypeContext, 1.0),
			Entry("remind skips facts", retrieval.IntentRemind, memory.TypeFact, 0.5),
			Entry("how_to favors facts", retrieval.IntentHowTo, memory.TypeFact, 0.8),
			Entry("how_to skips context", retrieval.IntentHowTo, memory.TypeContext, 0.5),
			Entry("general grants nothing", retrieval.IntentGeneral, memory.TypeLore, 0.5),
		)

		It("rewards mode theme overlap by tier", func() {
			podcastCtx := rctx
			podcastCtx.Mode = memory.ModePodcast

			one := newFact(func(f *memory.Fact) { f.Content = "taped an episode yesterday" })
			two := newFact(func(f *memory.Fact) { f.Content = "the episode had a guest" })
			three := newFact(func(f *memory.Fact) { f.Content = "episode with a guest on the show" })

			Expect(retrieval.ContextualRelevance(one, podcastCtx, retrieval.IntentGeneral, 0)).To(BeNumerically("~", 0.7, 1e-9))
			Expect(retrieval.ContextualRelevance(two, podcastCtx, retrieval.IntentGeneral, 0)).To(BeNumerically("~", 0.8, 1e-9))
			Expect(retrieval.ContextualRelevance(three, podcastCtx, retrieval.IntentGeneral, 0)).To(BeNumerically("~", 0.9, 1e-9))
		})

		It("adds scaled importance and confidence", func() {
			fact := newFact(func(f *memory.Fact) {
				f.Importance = 100
				f.Confidence = 100
			})
			score := retrieval.ContextualRelevance(fact, rctx, retrieval.IntentGeneral, 0)
			Expect(score).To(BeNumerically("~", 0.85, 1e-9))
		})

		It("caps the keyword match bonus", func() {
			fact := newFact(nil)
			two := retrieval.ContextualRelevance(fact, rctx, retrieval.IntentGeneral, 2)
			five := retrieval.ContextualRelevance(fact, rctx, retrieval.IntentGeneral, 5)
			Expect(two).To(BeNumerically("~", 0.7, 1e-9))
			Expect(five).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("never exceeds 1.0", func() {
			fact := newFact(func(f *memory.Fact) {
				f.Type = memory.TypePreference
				f.Importance = 100
				f.Confidence = 100
				f.LastSeenAt = now.Add(-1 * time.Hour)
			})
			score := retrieval.ContextualRelevance(fact, rctx, retrieval.IntentOpinion, 5)
			Expect(score).To(BeNumerically("~", 1.0, 1e-9))
		})
	})

	Describe("DiversityScore", func() {
		It("scores 1.0 against an empty selection", func() {
			cand := &memory.Fact{Type: memory.TypeLore}
			Expect(retrieval.DiversityScore(cand, nil)).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("penalizes each same-type selection", func() {
			cand := &memory.Fact{Type: memory.TypeLore}
			selected := []*memory.Fact{
				{Type: memory.TypeLore},
				{Type: memory.TypeLore},
				{Type: memory.TypeFact},
			}
			Expect(retrieval.DiversityScore(cand, selected)).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("penalizes keyword overlap by ratio", func() {
			cand := &memory.Fact{Type: memory.TypeLore, Keywords: []string{"music", "festival"}}
			selected := []*memory.Fact{
				{Type: memory.TypeFact, Keywords: []string{"Music"}},
			}
			// One of two candidate keywords is already covered.
			Expect(retrieval.DiversityScore(cand, selected)).To(BeNumerically("~", 0.9, 1e-9))
		})

		It("divides overlap by the larger keyword set", func() {
			cand := &memory.Fact{Type: memory.TypeLore, Keywords: []string{"tour"}}
			selected := []*memory.Fact{
				{Type: memory.TypeFact, Keywords: []string{"tour", "album", "setlist", "merch", "press"}},
			}
			// overlap 1 over max(1, 5) keywords.
			Expect(retrieval.DiversityScore(cand, selected)).To(BeNumerically("~", 0.96, 1e-9))
		})

		It("accumulates the keyword penalty per selected fact", func() {
			cand := &memory.Fact{Type: memory.TypeLore, Keywords: []string{"music", "festival"}}
			selected := []*memory.Fact{
				{Type: memory.TypeFact, Keywords: []string{"music", "festival"}},
				{Type: memory.TypeStory, Keywords: []string{"music", "festival"}},
			}
			Expect(retrieval.DiversityScore(cand, selected)).To(BeNumerically("~", 0.6, 1e-9))
		})

		It("floors at zero", func() {
			cand := &memory.Fact{Type: memory.TypeLore, Keywords: []string{"music"}}
			selected := make([]*memory.Fact, 11)
			for i := range selected {
				selected[i] = &memory.Fact{Type: memory.TypeLore, Keywords: []string{"music"}}
			}
			Expect(retrieval.DiversityScore(cand, selected)).To(BeNumerically("~", 0.0, 1e-9))
		})
	})

	Describe("FinalScore", func() {
		It("scales base by diversity and adds weighted contextual", func() {
			Expect(retrieval.FinalScore(2.0, 0.5, 0.6)).To(BeNumerically("~", 1.18, 1e-9))
		})
	})

	Describe("KeywordOnlyScore", func() {
		It("stands in for similarity on lexical-only hits", func() {
			Expect(retrieval.KeywordOnlyScore).To(BeNumerically("~", 0.7, 1e-9))
		})
	})
})
