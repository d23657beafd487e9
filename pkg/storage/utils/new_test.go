package storageutils_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/embeddings/hash"
	"github.com/papercomputeco/memories/pkg/logger"
	"github.com/papercomputeco/memories/pkg/storage/chroma"
	"github.com/papercomputeco/memories/pkg/storage/chromem"
	"github.com/papercomputeco/memories/pkg/storage/inmemory"
	"github.com/papercomputeco/memories/pkg/storage/postgres"
	"github.com/papercomputeco/memories/pkg/storage/qdrant"
	"github.com/papercomputeco/memories/pkg/storage/sqlite"
	storageutils "github.com/papercomputeco/memories/pkg/storage/utils"
)

var _ = Describe("NewDriver", func() {
	newOpts := func(provider, target string) *storageutils.NewDriverOpts {
		return &storageutils.NewDriverOpts{
			ProviderType:   provider,
			Target:         target,
			CollectionName: "memories",
			Dimensions:     32,
			Embedder:       hash.NewEmbedder(32),
			Logger:         logger.Nop(),
		}
	}

	DescribeTable("builds each provider without connecting",
		func(provider, target string, check func(any)) {
			d, err := storageutils.NewDriver(newOpts(provider, target))
			Expect(err).NotTo(HaveOccurred())
			check(d)
		},
		Entry("chroma", storageutils.ProviderChroma, "http://127.0.0.1:1", func(d any) {
			Expect(d).To(BeAssignableToTypeOf(&chroma.Driver{}))
		}),
		Entry("qdrant", storageutils.ProviderQdrant, "127.0.0.1:1", func(d any) {
			Expect(d).To(BeAssignableToTypeOf(&qdrant.Driver{}))
		}),
		Entry("sqlite", storageutils.ProviderSQLite, ":memory:", func(d any) {
			Expect(d).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		}),
		Entry("postgres", storageutils.ProviderPostgres, "postgres://u:p@127.0.0.1:1/db", func(d any) {
			Expect(d).To(BeAssignableToTypeOf(&postgres.Driver{}))
		}),
		Entry("chromem", storageutils.ProviderChromem, "", func(d any) {
			Expect(d).To(BeAssignableToTypeOf(&chromem.Driver{}))
		}),
		Entry("inmemory", storageutils.ProviderInMemory, "", func(d any) {
			Expect(d).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		}),
	)

	It("rejects unknown providers", func() {
		_, err := storageutils.NewDriver(newOpts("redis", ""))
		Expect(err).To(MatchError("unsupported storage provider: redis"))
	})

	It("lists every provider it can build", func() {
		Expect(storageutils.Providers()).To(ConsistOf("chroma", "qdrant", "sqlite", "postgres", "chromem", "inmemory"))
	})
})

var _ = Describe("display helpers", func() {
	It("names providers for humans", func() {
		Expect(storageutils.DisplayName("chroma")).To(Equal("ChromaDB"))
		Expect(storageutils.DisplayName("postgres")).To(Equal("PostgreSQL"))
		Expect(storageutils.DisplayName("other")).To(Equal("other"))
	})

	It("strips schemes and credentials from targets", func() {
		Expect(storageutils.DisplayTarget("http://localhost:8000")).To(Equal("localhost:8000"))
		Expect(storageutils.DisplayTarget("postgres://user:secret@db:5432/memories")).To(Equal("db:5432"))
		Expect(storageutils.DisplayTarget("/tmp/memories.db")).To(Equal("/tmp/memories.db"))
	})

	It("places file backed defaults under the given directory", func() {
		Expect(storageutils.DefaultTarget("sqlite", "/home/a/.memories")).To(Equal(filepath.Join("/home/a/.memories", "memories.db")))
		Expect(storageutils.DefaultTarget("chroma", "/x")).To(Equal("http://localhost:8000"))
		Expect(storageutils.DefaultTarget("postgres", "/x")).To(BeEmpty())
	})
})
