package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/embeddings"
	"github.com/papercomputeco/memories/pkg/storage"
	"github.com/papercomputeco/memories/pkg/storage/inmemory"
	"github.com/papercomputeco/memories/pkg/storage/storagetest"
	testutils "github.com/papercomputeco/memories/pkg/utils/test"
)

var _ = storagetest.DescribeDriver("inmemory", func() storage.Driver {
	return inmemory.NewDriver(nil)
})

var _ = Describe("Driver", func() {
	It("returns copies so callers cannot mutate stored metadata", func() {
		ctx := context.Background()
		d := inmemory.NewDriver(nil)
		Expect(d.Store(ctx, "a", "content", storage.Metadata{"agent": "x"})).To(Succeed())

		rec, err := d.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		rec.Metadata["agent"] = "mutated"

		again, err := d.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Metadata.String("agent")).To(Equal("x"))
	})

	It("returns no matches for a non-positive limit", func() {
		ctx := context.Background()
		d := inmemory.NewDriver(nil)
		Expect(d.Store(ctx, "a", "content", storage.Metadata{})).To(Succeed())

		matches, err := d.Search(ctx, "content", 0, storage.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(BeEmpty())
	})

	It("rejects records without an id", func() {
		d := inmemory.NewDriver(nil)
		Expect(d.Store(context.Background(), "", "content", nil)).NotTo(Succeed())
	})

	It("propagates embedder failures", func() {
		embedder := testutils.NewMockEmbedder()
		embedder.FailOn = "broken"
		d := inmemory.NewDriver(embedder)

		err := d.Store(context.Background(), "a", "broken", storage.Metadata{})
		Expect(err).To(MatchError(embeddings.ErrEmbedding))

		_, err = d.Get(context.Background(), "a")
		Expect(err).To(MatchError(storage.ErrNotFound))
	})

	It("ranks with the embeddings it is given", func() {
		ctx := context.Background()
		embedder := testutils.NewMockEmbedder()
		embedder.Embeddings["north"] = []float32{0, 1}
		embedder.Embeddings["east"] = []float32{1, 0}
		embedder.Embeddings["north-ish"] = []float32{0.1, 0.9}
		d := inmemory.NewDriver(embedder)

		Expect(d.Store(ctx, "e", "east", storage.Metadata{})).To(Succeed())
		Expect(d.Store(ctx, "n", "north", storage.Metadata{})).To(Succeed())

		matches, err := d.Search(ctx, "north-ish", 2, storage.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(2))
		Expect(matches[0].ID).To(Equal("n"))
		Expect(matches[1].ID).To(Equal("e"))

		Expect(d.Close()).To(Succeed())
		Expect(embedder.Closed()).To(BeTrue())
	})
})
