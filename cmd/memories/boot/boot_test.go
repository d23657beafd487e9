package boot_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/cmd/memories/boot"
	"github.com/papercomputeco/memories/pkg/cliui"
	"github.com/papercomputeco/memories/pkg/config"
	"github.com/papercomputeco/memories/pkg/embeddings"
	"github.com/papercomputeco/memories/pkg/logger"
	"github.com/papercomputeco/memories/pkg/memory"
)

var _ = Describe("Runtime", func() {
	var (
		cfg *config.Config
		dir string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		cfg = config.NewDefaultConfig()
		cfg.Embedding.Provider = "hash"
		cfg.Embedding.Dimensions = 32
	})

	newRuntime := func() *boot.Runtime {
		rt, err := boot.NewRuntime(cfg, dir, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(rt.Close)
		return rt
	}

	Describe("NewRuntime", func() {
		It("defaults the target from the provider", func() {
			Expect(newRuntime().Target).To(Equal("http://localhost:8000"))

			cfg.Storage.Provider = "sqlite"
			Expect(newRuntime().Target).To(Equal(filepath.Join(dir, "memories.db")))
		})

		It("keeps a configured target", func() {
			cfg.Storage.Target = "http://chroma.internal:9000"
			Expect(newRuntime().Target).To(Equal("http://chroma.internal:9000"))
		})

		It("reports the display target in status", func() {
			cfg.Storage.Provider = "inmemory"
			cfg.Storage.Target = "scratch"

			status := newRuntime().Service.Status(context.Background())
			Expect(status.Healthy()).To(BeTrue())
			Expect(status.Host).To(Equal("scratch"))
			Expect(status.Collection).To(Equal("memories"))
		})

		It("rejects an unknown storage provider", func() {
			cfg.Storage.Provider = "mongo"
			_, err := boot.NewRuntime(cfg, dir, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("unsupported storage provider: mongo")))
		})

		It("rejects an unknown events provider", func() {
			cfg.Events.Provider = "nats"
			_, err := boot.NewRuntime(cfg, dir, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("unsupported events provider: nats")))
		})
	})

	Describe("Describe", func() {
		It("keeps service error messages", func() {
			rt := newRuntime()
			Expect(rt.Describe(&memory.NotFoundError{ID: "abc"})).To(Equal("Memory 'abc' not found"))
			Expect(rt.Describe(&memory.InvalidOperationError{ID: "abc", Reason: "nope"})).To(Equal("nope"))
			Expect(rt.Describe(fmt.Errorf("%w: bad policy", memory.ErrInvalidRequest))).To(Equal("invalid request: bad policy"))
		})

		It("names the backend for anything else", func() {
			rt := newRuntime()
			Expect(rt.Describe(errors.New("dial tcp: connection refused"))).
				To(Equal("Cannot connect to ChromaDB at localhost:8000. Is it running?"))
		})

		It("names the embedding provider for embedding failures", func() {
			cfg.Embedding.Provider = "ollama"
			cfg.Embedding.Target = "http://localhost:11434"
			rt := newRuntime()

			err := fmt.Errorf("storing memory: %w", fmt.Errorf("%w: connection refused", embeddings.ErrEmbedding))
			Expect(rt.Describe(err)).To(Equal("Cannot get embeddings from ollama at localhost:11434. Is it running?"))
		})

		It("omits an empty target", func() {
			cfg.Storage.Provider = "inmemory"
			rt := newRuntime()
			Expect(rt.Describe(errors.New("boom"))).To(Equal("Cannot connect to in-memory storage. Is it running?"))
		})
	})

	Describe("Fail", func() {
		It("writes a JSON error and reports it", func() {
			rt := newRuntime()
			var buf bytes.Buffer

			err := rt.Fail(&buf, &memory.NotFoundError{ID: "abc"})
			Expect(err).To(MatchError(cliui.ErrReported))
			Expect(buf.String()).To(MatchJSON(`{"error": "Memory 'abc' not found"}`))
		})
	})
})
