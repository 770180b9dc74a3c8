package retrieval_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/retrieval"
	testutils "github.com/nickyai/memex/pkg/utils/test"
	"github.com/nickyai/memex/pkg/vector"
)

var _ = Describe("Ranker", func() {
	var (
		ctx      context.Context
		store    *testutils.MockFactStore
		vec      *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
		logger   *slog.Logger
		now      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = testutils.NewMockFactStore()
		vec = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	newRanker := func(opts retrieval.Options) *retrieval.Ranker {
		return retrieval.NewRanker(store, vec, embedder, opts, logger)
	}

	seedFact := func(id, content string, mut func(*memory.Fact)) *memory.Fact {
		fact := memory.NewFact("nicky", content)
		fact.ID = id
		fact.Lane = memory.LaneCanon
		fact.Confidence = 70
		fact.LastSeenAt = now.Add(-48 * time.Hour)
		fact.CreatedAt = now.Add(-30 * 24 * time.Hour)
		fact.UpdatedAt = fact.CreatedAt
		if mut != nil {
			mut(fact)
		}
		Expect(store.PutFact(ctx, fact)).To(Succeed())
		return fact
	}

	rctxWith := func(query string, mode memory.Mode, heat int) memory.RetrievalContext {
		return memory.RetrievalContext{
			ProfileID: "nicky",
			Query:     query,
			Mode:      mode,
			Heat:      heat,
			Now:       now,
		}
	}

	Describe("input validation", func() {
		It("requires a profile id", func() {
			_, err := newRanker(retrieval.Options{}).Retrieve(ctx, memory.RetrievalContext{Query: "hi"}, 0)
			Expect(err).To(MatchError(ContainSubstring("profile id")))
		})

		It("rejects unknown modes", func() {
			rctx := rctxWith("hi", "arena", 0)
			_, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctx, 0)
			Expect(err).To(MatchError(ContainSubstring("unknown mode")))
		})
	})

	Describe("branch merging", func() {
		It("merges semantic and keyword hits keeping max similarity", func() {
			fact := seedFact("fact-a", "loves synthwave music", func(f *memory.Fact) {
				f.Keywords = []string{"synthwave"}
			})
			vec.Results = []vector.QueryResult{
				{Document: vector.Document{ID: fact.ID, ProfileID: "nicky"}, Score: 0.9},
			}

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(1))

			got := res.Facts[0]
			Expect(got.ID).To(Equal("fact-a"))
			Expect(got.Breakdown.Via).To(ConsistOf("semantic", "keyword"))
			Expect(got.Breakdown.Similarity).To(BeNumerically("~", 0.9, 1e-6))
			Expect(got.Breakdown.MatchedKeywords).To(Equal(1))
			Expect(got.DisplayConfidence).To(Equal(fact.Confidence))
		})

		It("drops vector hits whose fact no longer exists", func() {
			seedFact("fact-a", "loves synthwave music", nil)
			vec.Results = []vector.QueryResult{
				{Document: vector.Document{ID: "ghost", ProfileID: "nicky"}, Score: 0.95},
				{Document: vector.Document{ID: "fact-a", ProfileID: "nicky"}, Score: 0.8},
			}

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(1))
			Expect(res.Facts[0].ID).To(Equal("fact-a"))
		})

		It("finds facts through linked events without content overlap", func() {
			fact := seedFact("fact-a", "it went wonderfully", nil)
			event := memory.NewEvent("nicky", "summer_festival_2025")
			event.EventDate = "July 10, 2025"
			Expect(store.PutEvent(ctx, event)).To(Succeed())
			Expect(store.LinkFact(ctx, event.ID, fact.ID)).To(Succeed())

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("tell me about the summer festival", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(1))
			Expect(res.Facts[0].ID).To(Equal("fact-a"))
			Expect(res.Facts[0].Breakdown.Via).To(ConsistOf("event"))
		})

		It("serves mode-tagged facts on an empty query", func() {
			seedFact("fact-a", "the show runs every tuesday", func(f *memory.Fact) {
				f.Keywords = []string{"podcast"}
			})

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("", memory.ModePodcast, 80), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(1))
			Expect(res.Facts[0].Breakdown.Via).To(ConsistOf("mode"))
		})
	})

	Describe("degraded mode", func() {
		It("survives a failing lexical branch on semantic hits", func() {
			seedFact("fact-a", "loves synthwave music", nil)
			vec.Results = []vector.QueryResult{
				{Document: vector.Document{ID: "fact-a", ProfileID: "nicky"}, Score: 0.9},
			}
			store.FailSearch = true

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Degraded).To(ConsistOf("keyword"))
			Expect(res.Facts).To(HaveLen(1))
			Expect(res.Facts[0].Breakdown.Via).To(ConsistOf("semantic"))
		})

		It("degrades the semantic branch when embedding fails", func() {
			seedFact("fact-a", "loves synthwave music", nil)
			embedder.Fail = true

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Degraded).To(ConsistOf("semantic"))
			Expect(res.Facts).To(HaveLen(1))
			Expect(res.Facts[0].Breakdown.Via).To(ConsistOf("keyword"))
		})

		It("skips the semantic branch silently without an embedder", func() {
			seedFact("fact-a", "loves synthwave music", nil)

			ranker := retrieval.NewRanker(store, nil, nil, retrieval.Options{}, logger)
			res, err := ranker.Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Degraded).To(BeEmpty())
			Expect(res.Facts).To(HaveLen(1))
		})
	})

	Describe("lane policy", func() {
		It("keeps rumors off stage in calm chat", func() {
			seedFact("rumor-a", "allegedly hates synthwave", func(f *memory.Fact) {
				f.Lane = memory.LaneRumor
			})

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(BeEmpty())
			Expect(res.Rejected).To(Equal(1))
		})

		It("admits rumors on stream", func() {
			seedFact("rumor-a", "allegedly hates synthwave", func(f *memory.Fact) {
				f.Lane = memory.LaneRumor
			})

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeStreaming, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(1))
		})

		It("admits rumors in hot chat", func() {
			seedFact("rumor-a", "allegedly hates synthwave", func(f *memory.Fact) {
				f.Lane = memory.LaneRumor
			})

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 90), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(1))
		})

		It("never surfaces deprecated or ambiguous facts", func() {
			seedFact("dep-a", "old synthwave take", func(f *memory.Fact) {
				f.Status = memory.StatusDeprecated
			})
			seedFact("amb-a", "unclear synthwave take", func(f *memory.Fact) {
				f.Status = memory.StatusAmbiguous
			})

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeStreaming, 100), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(BeEmpty())
			Expect(res.Rejected).To(Equal(2))
		})

		It("gates canon facts below confidence 60", func() {
			seedFact("low-a", "possibly from synthwave town", func(f *memory.Fact) {
				f.Confidence = 59
			})
			seedFact("ok-a", "definitely from synthwave town", func(f *memory.Fact) {
				f.Confidence = 60
			})

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(1))
			Expect(res.Facts[0].ID).To(Equal("ok-a"))
			Expect(res.Rejected).To(Equal(1))
		})

		It("caps rumors at three with display confidence 40 on a calm podcast", func() {
			for _, seed := range []struct {
				id  string
				imp int
			}{
				{"rumor-90", 90},
				{"rumor-80", 80},
				{"rumor-70", 70},
				{"rumor-10", 10},
			} {
				seedFact(seed.id, "synthwave rumor mill", func(f *memory.Fact) {
					f.Lane = memory.LaneRumor
					f.Importance = seed.imp
				})
			}
			canon := seedFact("canon-a", "synthwave is home", func(f *memory.Fact) {
				f.Confidence = 80
			})

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModePodcast, 50), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Rejected).To(Equal(1))
			Expect(res.Facts).To(HaveLen(4))

			ids := make([]string, 0, len(res.Facts))
			for _, ranked := range res.Facts {
				ids = append(ids, ranked.ID)
				if ranked.Lane == memory.LaneRumor {
					Expect(ranked.DisplayConfidence).To(Equal(40))
					Expect(ranked.Confidence).To(BeNumerically(">", 40))
				}
			}
			Expect(ids).To(ContainElements("rumor-90", "rumor-80", "rumor-70", "canon-a"))
			Expect(ids).NotTo(ContainElement("rumor-10"))
			Expect(canon.Confidence).To(Equal(80))

			for _, ranked := range res.Facts {
				if ranked.ID == "canon-a" {
					Expect(ranked.DisplayConfidence).To(Equal(80))
				}
			}
		})
	})

	Describe("diversified selection", func() {
		It("prefers a fresh type over a near-duplicate", func() {
			seedFact("pref-a", "synthwave all night", func(f *memory.Fact) {
				f.Type = memory.TypePreference
				f.Importance = 90
				f.Keywords = []string{"music"}
			})
			seedFact("pref-b", "synthwave every morning", func(f *memory.Fact) {
				f.Type = memory.TypePreference
				f.Importance = 88
				f.Keywords = []string{"music"}
			})
			seedFact("lore-c", "synthwave city childhood", func(f *memory.Fact) {
				f.Type = memory.TypeLore
				f.Importance = 80
				f.Keywords = []string{"festival"}
			})

			res, err := newRanker(retrieval.Options{TopK: 2}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(2))
			Expect(res.Facts[0].ID).To(Equal("pref-a"))
			Expect(res.Facts[1].ID).To(Equal("lore-c"))
		})

		It("breaks score ties by support count", func() {
			seedFact("tie-a", "synthwave forever", func(f *memory.Fact) {
				f.SupportCount = 2
			})
			seedFact("tie-b", "synthwave forever", func(f *memory.Fact) {
				f.SupportCount = 9
			})

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(2))
			Expect(res.Facts[0].ID).To(Equal("tie-b"))
		})

		It("breaks full ties by ID", func() {
			seedFact("zz-tie", "synthwave forever", nil)
			seedFact("aa-tie", "synthwave forever", nil)

			res, err := newRanker(retrieval.Options{}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(2))
			Expect(res.Facts[0].ID).To(Equal("aa-tie"))
		})

		It("stops selecting below the score floor", func() {
			seedFact("big-a", "synthwave headline", func(f *memory.Fact) {
				f.Importance = 90
			})
			seedFact("small-b", "synthwave footnote", func(f *memory.Fact) {
				f.Type = memory.TypeStory
				f.Importance = 20
			})

			res, err := newRanker(retrieval.Options{MinScore: 6}).Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(1))
			Expect(res.Facts[0].ID).To(Equal("big-a"))
		})

		It("honors the configured and per-call topK", func() {
			seedFact("a", "synthwave one", nil)
			seedFact("b", "synthwave two", nil)
			seedFact("c", "synthwave three", nil)

			ranker := newRanker(retrieval.Options{TopK: 2})

			res, err := ranker.Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(2))

			res, err = ranker.Retrieve(ctx, rctxWith("synthwave", memory.ModeChat, 0), 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Facts).To(HaveLen(1))
		})
	})
})
