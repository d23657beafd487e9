package eventstream_test

import (
	"encoding/json"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals MemoryEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.NewMemoryEvent(
			eventstream.EventTypeMemoryCreated,
			"8c1d6c3e-2f4b-4c55-9d6f-3a1b2c3d4e5f",
			"claude",
			"memories",
			"stable",
			now,
		)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKeyWithValue("schema_version", BeNumerically("==", 1)))
		Expect(got).To(HaveKeyWithValue("event_type", "memories.memory.created"))
		Expect(got).To(HaveKeyWithValue("memory_id", "8c1d6c3e-2f4b-4c55-9d6f-3a1b2c3d4e5f"))
		Expect(got).To(HaveKeyWithValue("agent", "claude"))
		Expect(got).To(HaveKeyWithValue("project", "memories"))
		Expect(got).To(HaveKeyWithValue("decay_policy", "stable"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
	})

	It("omits empty tags", func() {
		event := eventstream.NewMemoryEvent(eventstream.EventTypeMemoryDeleted, "id", "", "", "contextual", time.Now())

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).NotTo(ContainSubstring(`"agent"`))
		Expect(string(payload)).NotTo(ContainSubstring(`"project"`))
	})

	It("gives every event a distinct id", func() {
		a := eventstream.NewMemoryEvent(eventstream.EventTypeMemoryCreated, "id", "", "", "stable", time.Now())
		b := eventstream.NewMemoryEvent(eventstream.EventTypeMemoryCreated, "id", "", "", "stable", time.Now())
		Expect(a.EventID).NotTo(Equal(b.EventID))
		Expect(strings.HasPrefix(a.EventID, "evt_")).To(BeTrue())
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeMemoryCreated).To(Equal("memories.memory.created"))
		Expect(eventstream.EventTypeMemoryReinforced).To(Equal("memories.memory.reinforced"))
		Expect(eventstream.EventTypeMemoryDeleted).To(Equal("memories.memory.deleted"))
	})

	It("provides ErrNilMemoryEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilMemoryEvent).To(MatchError("nil memory event"))
	})
})
