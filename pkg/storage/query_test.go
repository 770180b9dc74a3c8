package storage_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
)

func intPtr(v int) *int                       { return &v }
func statusPtr(s memory.Status) *memory.Status { return &s }
func boolPtr(b bool) *bool                     { return &b }

var _ = Describe("FactPatch", func() {
	var fact *memory.Fact

	BeforeEach(func() {
		fact = memory.NewFact("nicky", "debuted in 2021")
		fact.Confidence = 80
	})

	Describe("Apply", func() {
		It("applies set fields and bumps UpdatedAt", func() {
			before := fact.UpdatedAt

			changed, err := storage.FactPatch{
				Confidence: intPtr(95),
				Status:     statusPtr(memory.StatusAmbiguous),
			}.Apply(fact)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(fact.Confidence).To(Equal(95))
			Expect(fact.Status).To(Equal(memory.StatusAmbiguous))
			Expect(fact.UpdatedAt).To(BeTemporally(">=", before))
		})

		It("reports no change for an identical patch", func() {
			changed, err := storage.FactPatch{Confidence: intPtr(80)}.Apply(fact)

			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})

		It("clamps out-of-range confidence", func() {
			_, err := storage.FactPatch{Confidence: intPtr(500)}.Apply(fact)

			Expect(err).NotTo(HaveOccurred())
			Expect(fact.Confidence).To(Equal(memory.MaxConfidence))
		})

		It("appends a note once", func() {
			note := "[timeline] stale-future: event already happened"

			changed, err := storage.FactPatch{AppendNote: note}.Apply(fact)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeTrue())
			Expect(fact.TemporalContext).To(ContainSubstring(note))

			changed, err = storage.FactPatch{AppendNote: note}.Apply(fact)
			Expect(err).NotTo(HaveOccurred())
			Expect(changed).To(BeFalse())
		})

		It("appends notes on separate lines", func() {
			fact.TemporalContext = "mentioned during stream"

			_, err := storage.FactPatch{AppendNote: "[timeline] note"}.Apply(fact)

			Expect(err).NotTo(HaveOccurred())
			Expect(fact.TemporalContext).To(Equal("mentioned during stream\n[timeline] note"))
		})

		Context("with a protected fact", func() {
			BeforeEach(func() {
				fact.Protected = true
				fact.Normalize()
			})

			It("rejects lowering confidence", func() {
				_, err := storage.FactPatch{Confidence: intPtr(50)}.Apply(fact)

				Expect(err).To(MatchError(memory.ErrProtectedFact))
				Expect(fact.Confidence).To(Equal(memory.MaxConfidence))
			})

			It("rejects status changes", func() {
				_, err := storage.FactPatch{Status: statusPtr(memory.StatusDeprecated)}.Apply(fact)

				Expect(err).To(MatchError(memory.ErrProtectedFact))
			})

			It("rejects clearing the protection flag", func() {
				_, err := storage.FactPatch{Protected: boolPtr(false)}.Apply(fact)

				Expect(err).To(MatchError(memory.ErrProtectedFact))
			})

			It("allows non-lowering writes", func() {
				changed, err := storage.FactPatch{SupportCount: intPtr(3)}.Apply(fact)

				Expect(err).NotTo(HaveOccurred())
				Expect(changed).To(BeTrue())
				Expect(fact.SupportCount).To(Equal(3))
			})
		})
	})

	Describe("IsZero", func() {
		It("is true for the empty patch", func() {
			Expect(storage.FactPatch{}.IsZero()).To(BeTrue())
			Expect(storage.FactPatch{AppendNote: "x"}.IsZero()).To(BeFalse())
		})
	})
})

var _ = Describe("FactQuery", func() {
	newFact := func() *memory.Fact {
		f := memory.NewFact("nicky", "collects vintage keyboards")
		f.Lane = memory.LaneCanon
		f.Status = memory.StatusActive
		f.Type = memory.TypePreference
		f.CanonicalKey = "nicky.hobby"
		f.Keywords = []string{"keyboards", "Collecting"}
		return f
	}

	It("matches on every set filter", func() {
		f := newFact()

		Expect(storage.FactQuery{ProfileID: "nicky"}.Matches(f)).To(BeTrue())
		Expect(storage.FactQuery{ProfileID: "other"}.Matches(f)).To(BeFalse())
		Expect(storage.FactQuery{Lane: memory.LaneCanon}.Matches(f)).To(BeTrue())
		Expect(storage.FactQuery{Lane: memory.LaneRumor}.Matches(f)).To(BeFalse())
		Expect(storage.FactQuery{Statuses: []memory.Status{memory.StatusActive}}.Matches(f)).To(BeTrue())
		Expect(storage.FactQuery{Statuses: []memory.Status{memory.StatusDeprecated}}.Matches(f)).To(BeFalse())
		Expect(storage.FactQuery{Types: []memory.FactType{memory.TypePreference}}.Matches(f)).To(BeTrue())
		Expect(storage.FactQuery{CanonicalKey: "nicky.hobby"}.Matches(f)).To(BeTrue())
		Expect(storage.FactQuery{HasCanonicalKey: true}.Matches(f)).To(BeTrue())
		Expect(storage.FactQuery{Keyword: "collecting"}.Matches(f)).To(BeTrue())
		Expect(storage.FactQuery{Keyword: "gaming"}.Matches(f)).To(BeFalse())
	})

	It("treats MissingEmbedding as an unindexed filter", func() {
		f := newFact()
		Expect(storage.FactQuery{MissingEmbedding: true}.Matches(f)).To(BeTrue())

		f.Embedding = []float32{0.1}
		Expect(storage.FactQuery{MissingEmbedding: true}.Matches(f)).To(BeFalse())
	})

	It("ignores zero-valued filters", func() {
		f := newFact()
		f.LastSeenAt = time.Now()

		Expect(storage.FactQuery{}.Matches(f)).To(BeTrue())
	})
})
