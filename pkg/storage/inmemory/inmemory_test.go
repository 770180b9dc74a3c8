package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
	"github.com/nickyai/memex/pkg/storage/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
	})

	Describe("PutFact and GetFact", func() {
		It("round-trips a fact", func() {
			fact := memory.NewFact("nicky", "grew up in Osaka")
			fact.Keywords = []string{"osaka", "hometown"}

			Expect(driver.PutFact(ctx, fact)).To(Succeed())

			got, err := driver.GetFact(ctx, fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("grew up in Osaka"))
			Expect(got.Keywords).To(Equal([]string{"osaka", "hometown"}))
		})

		It("returns NotFoundError for missing facts", func() {
			_, err := driver.GetFact(ctx, "nope")

			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("rejects nil facts", func() {
			Expect(driver.PutFact(ctx, nil)).NotTo(Succeed())
		})

		It("isolates stored facts from caller mutation", func() {
			fact := memory.NewFact("nicky", "original")
			Expect(driver.PutFact(ctx, fact)).To(Succeed())

			fact.Content = "mutated"

			got, err := driver.GetFact(ctx, fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("original"))
		})
	})

	Describe("ListFacts", func() {
		BeforeEach(func() {
			canon := memory.NewFact("nicky", "debut album released 2021")
			canon.Lane = memory.LaneCanon
			canon.CanonicalKey = "nicky.debut"
			Expect(driver.PutFact(ctx, canon)).To(Succeed())

			rumor := memory.NewFact("nicky", "maybe moving to Tokyo")
			Expect(driver.PutFact(ctx, rumor)).To(Succeed())

			other := memory.NewFact("someone-else", "unrelated")
			Expect(driver.PutFact(ctx, other)).To(Succeed())
		})

		It("filters by profile and lane", func() {
			facts, err := driver.ListFacts(ctx, storage.FactQuery{
				ProfileID: "nicky",
				Lane:      memory.LaneCanon,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].CanonicalKey).To(Equal("nicky.debut"))
		})

		It("applies the limit after filtering", func() {
			facts, err := driver.ListFacts(ctx, storage.FactQuery{ProfileID: "nicky", Limit: 1})

			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
		})
	})

	Describe("PatchFact", func() {
		It("applies an atomic partial update", func() {
			fact := memory.NewFact("nicky", "streams on Fridays")
			Expect(driver.PutFact(ctx, fact)).To(Succeed())

			conf := 90
			updated, err := driver.PatchFact(ctx, fact.ID, storage.FactPatch{Confidence: &conf})

			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Confidence).To(Equal(90))

			got, err := driver.GetFact(ctx, fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Confidence).To(Equal(90))
		})

		It("enforces the protection invariant", func() {
			fact := memory.NewFact("nicky", "real name is Niamh")
			fact.Protected = true
			Expect(driver.PutFact(ctx, fact)).To(Succeed())

			conf := 10
			_, err := driver.PatchFact(ctx, fact.ID, storage.FactPatch{Confidence: &conf})

			Expect(err).To(MatchError(memory.ErrProtectedFact))

			got, err := driver.GetFact(ctx, fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Confidence).To(Equal(memory.MaxConfidence))
		})

		It("returns NotFoundError for missing facts", func() {
			_, err := driver.PatchFact(ctx, "nope", storage.FactPatch{})

			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("SearchFacts", func() {
		BeforeEach(func() {
			a := memory.NewFact("nicky", "wrote a synthwave track with Mori")
			a.Keywords = []string{"music", "synthwave"}
			Expect(driver.PutFact(ctx, a)).To(Succeed())

			b := memory.NewFact("nicky", "allergic to shellfish")
			Expect(driver.PutFact(ctx, b)).To(Succeed())
		})

		It("matches content tokens case-insensitively", func() {
			facts, err := driver.SearchFacts(ctx, "nicky", []string{"SYNTHWAVE"}, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Content).To(ContainSubstring("synthwave"))
		})

		It("matches keywords", func() {
			facts, err := driver.SearchFacts(ctx, "nicky", []string{"music"}, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
		})

		It("ranks multi-term hits first", func() {
			facts, err := driver.SearchFacts(ctx, "nicky", []string{"synthwave", "mori"}, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(facts).NotTo(BeEmpty())
			Expect(facts[0].Content).To(ContainSubstring("Mori"))
		})

		It("returns nothing for other profiles", func() {
			facts, err := driver.SearchFacts(ctx, "ghost", []string{"synthwave"}, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(BeEmpty())
		})
	})

	Describe("events and links", func() {
		var (
			event *memory.Event
			fact  *memory.Fact
		)

		BeforeEach(func() {
			event = memory.NewEvent("nicky", "Debut Album Launch")
			event.EventDate = "2021-06-15"
			Expect(driver.PutEvent(ctx, event)).To(Succeed())

			fact = memory.NewFact("nicky", "album launch party ran long")
			Expect(driver.PutFact(ctx, fact)).To(Succeed())
		})

		It("links facts to events both ways", func() {
			Expect(driver.LinkFact(ctx, event.ID, fact.ID)).To(Succeed())

			facts, err := driver.FactsForEvent(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].ID).To(Equal(fact.ID))

			events, err := driver.EventsForFact(ctx, fact.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].CanonicalName).To(Equal("Debut Album Launch"))
		})

		It("is idempotent on duplicate links", func() {
			Expect(driver.LinkFact(ctx, event.ID, fact.ID)).To(Succeed())
			Expect(driver.LinkFact(ctx, event.ID, fact.ID)).To(Succeed())

			facts, err := driver.FactsForEvent(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
		})

		It("rejects links to unknown records", func() {
			Expect(storage.IsNotFound(driver.LinkFact(ctx, "nope", fact.ID))).To(BeTrue())
			Expect(storage.IsNotFound(driver.LinkFact(ctx, event.ID, "nope"))).To(BeTrue())
		})

		It("lists events by profile", func() {
			events, err := driver.ListEvents(ctx, "nicky")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))

			events, err = driver.ListEvents(ctx, "ghost")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})
	})

	Describe("Stats", func() {
		It("counts by lane, status, and type", func() {
			canon := memory.NewFact("nicky", "a")
			canon.Lane = memory.LaneCanon
			Expect(driver.PutFact(ctx, canon)).To(Succeed())

			rumor := memory.NewFact("nicky", "b")
			rumor.Status = memory.StatusDeprecated
			Expect(driver.PutFact(ctx, rumor)).To(Succeed())

			Expect(driver.PutEvent(ctx, memory.NewEvent("nicky", "Launch"))).To(Succeed())

			stats, err := driver.Stats(ctx, "nicky")
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Facts).To(Equal(2))
			Expect(stats.Events).To(Equal(1))
			Expect(stats.ByLane[memory.LaneCanon]).To(Equal(1))
			Expect(stats.ByLane[memory.LaneRumor]).To(Equal(1))
			Expect(stats.ByStatus[memory.StatusDeprecated]).To(Equal(1))
		})
	})
})
