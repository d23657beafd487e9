package memory_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/memory"
)

var _ = Describe("Confidence", func() {
	DescribeTable("always marshals with a decimal point",
		func(c memory.Confidence, want string) {
			b, err := json.Marshal(c)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(b)).To(Equal(want))
		},
		Entry("full", memory.Confidence(1), "1.0"),
		Entry("none", memory.Confidence(0), "0.0"),
		Entry("half", memory.Confidence(0.5), "0.5"),
		Entry("four decimals", memory.Confidence(0.8611), "0.8611"),
	)

	It("decodes like a plain number", func() {
		var resp memory.ReinforceResponse
		Expect(json.Unmarshal([]byte(`{"id":"a","confidence":1.0,"last_reinforced_at":"t"}`), &resp)).To(Succeed())
		Expect(resp.Confidence).To(BeNumerically("==", 1.0))
	})
})

var _ = Describe("SearchResultItem", func() {
	It("flattens the memory fields next to similarity", func() {
		b, err := json.Marshal(memory.SearchResultItem{
			MemoryResponse: memory.MemoryResponse{ID: "a", Confidence: 1},
			Similarity:     0.25,
		})
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(b, &got)).To(Succeed())
		Expect(got).To(HaveKeyWithValue("id", "a"))
		Expect(got).To(HaveKeyWithValue("similarity", 0.25))
		Expect(got).To(HaveKeyWithValue("global", false))
		Expect(got).To(HaveKey("last_reinforced_at"))
	})
})

var _ = Describe("KindOf", func() {
	It("classifies typed errors and everything else", func() {
		Expect(memory.KindOf(nil)).To(Equal(memory.KindNone))
		Expect(memory.KindOf(&memory.NotFoundError{ID: "a"})).To(Equal(memory.KindNotFound))
		Expect(memory.KindOf(&memory.InvalidOperationError{Reason: "no"})).To(Equal(memory.KindInvalidOperation))
		Expect(memory.KindOf(memory.ErrInvalidRequest)).To(Equal(memory.KindInvalidRequest))
		Expect(memory.KindOf(json.Unmarshal([]byte("{"), &struct{}{}))).To(Equal(memory.KindBackendUnavailable))
	})
})
