package retrieval_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/retrieval"
)

var _ = Describe("DetectIntent", func() {
	It("detects opinion queries", func() {
		Expect(retrieval.DetectIntent("What do you think about the new album?")).To(Equal(retrieval.IntentOpinion))
		Expect(retrieval.DetectIntent("what's your favorite snack")).To(Equal(retrieval.IntentOpinion))
		Expect(retrieval.DetectIntent("how do you feel about mornings")).To(Equal(retrieval.IntentOpinion))
	})

	It("detects remind queries", func() {
		Expect(retrieval.DetectIntent("remind me what we planned")).To(Equal(retrieval.IntentRemind))
		Expect(retrieval.DetectIntent("do you remember when we raided that server?")).To(Equal(retrieval.IntentRemind))
		Expect(retrieval.DetectIntent("what did I say about the festival")).To(Equal(retrieval.IntentRemind))
	})

	It("detects how-to queries", func() {
		Expect(retrieval.DetectIntent("How do I set up the overlay?")).To(Equal(retrieval.IntentHowTo))
		Expect(retrieval.DetectIntent("how to make pour over coffee")).To(Equal(retrieval.IntentHowTo))
	})

	It("detects tell-about queries", func() {
		Expect(retrieval.DetectIntent("Tell me about your hometown")).To(Equal(retrieval.IntentTellAbout))
		Expect(retrieval.DetectIntent("who is your producer")).To(Equal(retrieval.IntentTellAbout))
		Expect(retrieval.DetectIntent("what is the deal with the mascot")).To(Equal(retrieval.IntentTellAbout))
	})

	It("falls back to general", func() {
		Expect(retrieval.DetectIntent("synthwave")).To(Equal(retrieval.IntentGeneral))
		Expect(retrieval.DetectIntent("")).To(Equal(retrieval.IntentGeneral))
	})

	It("prefers opinion over how-to when both match", func() {
		// "how do you feel" also contains the how-to phrase "how do you".
		Expect(retrieval.DetectIntent("how do you feel about the merch")).To(Equal(retrieval.IntentOpinion))
	})

	It("prefers remind over tell-about when both match", func() {
		Expect(retrieval.DetectIntent("remind me what is on the calendar")).To(Equal(retrieval.IntentRemind))
	})
})

var _ = Describe("InTheaterZone", func() {
	It("is on stage above heat 70 in any mode", func() {
		Expect(retrieval.InTheaterZone("chat", 71)).To(BeTrue())
		Expect(retrieval.InTheaterZone("discord", 100)).To(BeTrue())
	})

	It("is on stage in podcast and streaming regardless of heat", func() {
		Expect(retrieval.InTheaterZone("podcast", 0)).To(BeTrue())
		Expect(retrieval.InTheaterZone("streaming", 0)).To(BeTrue())
	})

	It("is off stage in calm chat and discord", func() {
		Expect(retrieval.InTheaterZone("chat", 70)).To(BeFalse())
		Expect(retrieval.InTheaterZone("discord", 0)).To(BeFalse())
	})
})
