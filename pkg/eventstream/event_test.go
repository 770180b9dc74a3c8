package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nickyai/memex/pkg/eventstream"
	"github.com/nickyai/memex/pkg/memory"
)

var _ = Describe("Event", func() {
	It("marshals FactEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.FactEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeFactBoosted,
			EventID:       "evt_123",
			EmittedAt:     now,
			ProfileID:     "nicky",
			FactID:        "fact_abc",
			Op:            "boost",
			OldStatus:     memory.StatusActive,
			NewStatus:     memory.StatusActive,
			OldConfidence: 70,
			NewConfidence: 85,
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("profile_id"))
		Expect(got).To(HaveKey("fact_id"))
		Expect(got).To(HaveKey("op"))
		Expect(got).To(HaveKey("old_confidence"))
		Expect(got).To(HaveKey("new_confidence"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeFactBoosted).To(Equal(eventstream.EventType("fact.boosted")))
		Expect(eventstream.EventTypeFactDeprecated).To(Equal(eventstream.EventType("fact.deprecated")))
		Expect(eventstream.EventTypeFactProtected).To(Equal(eventstream.EventType("fact.protected")))
		Expect(eventstream.EventTypeFactResolved).To(Equal(eventstream.EventType("fact.resolved")))
		Expect(eventstream.EventTypeFactDismissed).To(Equal(eventstream.EventType("fact.dismissed")))
		Expect(eventstream.EventTypeFactAudited).To(Equal(eventstream.EventType("fact.audited")))
		Expect(eventstream.EventTypeFactIndexed).To(Equal(eventstream.EventType("fact.indexed")))
	})

	It("fills ID, timestamp, and schema version in NewFactEvent", func() {
		event := eventstream.NewFactEvent(eventstream.EventTypeFactAudited, "audit", "nicky", "fact_abc")

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.EmittedAt).NotTo(BeZero())
		Expect(event.ProfileID).To(Equal("nicky"))
		Expect(event.FactID).To(Equal("fact_abc"))
		Expect(event.Op).To(Equal("audit"))
	})

	It("provides ErrNilFactEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilFactEvent).NotTo(BeNil())
		Expect(eventstream.ErrNilFactEvent).To(MatchError("nil fact event"))
	})
})
