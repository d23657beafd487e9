package chromem_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/embeddings/hash"
	"github.com/papercomputeco/memories/pkg/logger"
	"github.com/papercomputeco/memories/pkg/storage"
	"github.com/papercomputeco/memories/pkg/storage/chromem"
	"github.com/papercomputeco/memories/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("chromem", func() storage.Driver {
	d, err := chromem.NewDriver(chromem.Config{Embedder: hash.NewEmbedder(0)}, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return d
})

var _ = Describe("Driver", func() {
	It("should require an embedder", func() {
		_, err := chromem.NewDriver(chromem.Config{}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("embedder is required")))
	})

	It("should return no matches from an empty collection", func() {
		d, err := chromem.NewDriver(chromem.Config{Embedder: hash.NewEmbedder(0)}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		matches, err := d.Search(context.Background(), "anything", 10, storage.Filter{"deleted": false})
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(BeEmpty())
	})

	It("should persist documents to a directory", func() {
		ctx := context.Background()
		dir := GinkgoT().TempDir()

		first, err := chromem.NewDriver(chromem.Config{Path: dir, Embedder: hash.NewEmbedder(0)}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Store(ctx, "11111111-1111-4111-8111-111111111111", "prefers tabs", storage.Metadata{
			"agent":   "alice",
			"deleted": false,
		})).To(Succeed())
		Expect(first.Close()).To(Succeed())

		second, err := chromem.NewDriver(chromem.Config{Path: dir, Embedder: hash.NewEmbedder(0)}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		rec, err := second.Get(ctx, "11111111-1111-4111-8111-111111111111")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Content).To(Equal("prefers tabs"))
		Expect(rec.Metadata["deleted"]).To(BeFalse())
		Expect(rec.Metadata.String("agent")).To(Equal("alice"))
	})
})
