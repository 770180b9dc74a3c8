package seedcmder

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
	"github.com/nickyai/memex/pkg/storage/inmemory"
)

var _ = Describe("seedPersona", func() {
	var (
		ctx   context.Context
		store *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
	})

	It("reports the seeded fact and event counts", func() {
		facts, events, err := seedPersona(ctx, store, "nicky")
		Expect(err).NotTo(HaveOccurred())
		Expect(facts).To(Equal(len(demoFacts)))
		Expect(events).To(Equal(len(demoEvents)))
	})

	It("seeds both lanes", func() {
		_, _, err := seedPersona(ctx, store, "nicky")
		Expect(err).NotTo(HaveOccurred())

		canon, err := store.ListFacts(ctx, storage.FactQuery{ProfileID: "nicky", Lane: memory.LaneCanon})
		Expect(err).NotTo(HaveOccurred())
		Expect(canon).NotTo(BeEmpty())

		rumors, err := store.ListFacts(ctx, storage.FactQuery{ProfileID: "nicky", Lane: memory.LaneRumor})
		Expect(err).NotTo(HaveOccurred())
		Expect(rumors).NotTo(BeEmpty())
	})

	It("links facts to their events", func() {
		_, _, err := seedPersona(ctx, store, "nicky")
		Expect(err).NotTo(HaveOccurred())

		events, err := store.ListEvents(ctx, "nicky")
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(len(demoEvents)))

		linked := 0
		for _, event := range events {
			facts, err := store.FactsForEvent(ctx, event.ID)
			Expect(err).NotTo(HaveOccurred())
			linked += len(facts)
		}
		Expect(linked).To(BeNumerically(">", 0))
	})

	It("seeds under the given profile only", func() {
		_, _, err := seedPersona(ctx, store, "demo")
		Expect(err).NotTo(HaveOccurred())

		facts, err := store.ListFacts(ctx, storage.FactQuery{ProfileID: "nicky"})
		Expect(err).NotTo(HaveOccurred())
		Expect(facts).To(BeEmpty())
	})
})
