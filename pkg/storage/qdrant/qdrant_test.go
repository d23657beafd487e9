package qdrant_test

import (
	"context"
	"os"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/embeddings/hash"
	"github.com/papercomputeco/memories/pkg/logger"
	"github.com/papercomputeco/memories/pkg/storage"
	"github.com/papercomputeco/memories/pkg/storage/qdrant"
	"github.com/papercomputeco/memories/pkg/storage/storagetest"
)

// target returns the Qdrant gRPC address from environment or skips the test.
func target() string {
	t := os.Getenv("MEMORIES_TEST_QDRANT_TARGET")
	if t == "" {
		Skip("MEMORIES_TEST_QDRANT_TARGET not set, skipping Qdrant tests")
	}
	return t
}

var _ = storagetest.DescribeDriver("qdrant", func() storage.Driver {
	d, err := qdrant.NewDriver(qdrant.Config{
		Target:         target(),
		CollectionName: "conformance-" + uuid.NewString(),
		Dimensions:     64,
		Embedder:       hash.NewEmbedder(64),
	}, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return d
})

var _ = Describe("Driver", func() {
	Describe("NewDriver", func() {
		It("should return an error when the target is empty", func() {
			_, err := qdrant.NewDriver(qdrant.Config{Dimensions: 4, Embedder: hash.NewEmbedder(4)}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("qdrant target is required")))
		})

		It("should error when dimension not specified", func() {
			_, err := qdrant.NewDriver(qdrant.Config{Target: "localhost", Embedder: hash.NewEmbedder(4)}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("dimensions cannot be 0")))
		})
	})

	DescribeTable("ParseTarget",
		func(in, host string, port int) {
			h, p, err := qdrant.ParseTarget(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(h).To(Equal(host))
			Expect(p).To(Equal(port))
		},
		Entry("bare host", "localhost", "localhost", qdrant.DefaultPort),
		Entry("host and port", "qdrant.internal:7334", "qdrant.internal", 7334),
		Entry("url with scheme", "http://localhost:6334/", "localhost", 6334),
	)

	It("rejects an invalid port", func() {
		_, _, err := qdrant.ParseTarget("localhost:http")
		Expect(err).To(MatchError(ContainSubstring("invalid qdrant port")))
	})

	Describe("with a live server", func() {
		It("treats ids that are not UUIDs as absent", func() {
			d, err := qdrant.NewDriver(qdrant.Config{
				Target:     target(),
				Dimensions: 64,
				Embedder:   hash.NewEmbedder(64),
			}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = d.Get(context.Background(), "not-a-uuid")
			Expect(err).To(MatchError(storage.ErrNotFound))
			Expect(d.Delete(context.Background(), "not-a-uuid")).To(Succeed())
		})
	})
})
