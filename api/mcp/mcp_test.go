package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/logger"
	"github.com/papercomputeco/memories/pkg/memory"
	testutils "github.com/papercomputeco/memories/pkg/utils/test"
)

func resultText(res *mcp.CallToolResult) string {
	Expect(res.Content).To(HaveLen(1))
	text, ok := res.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		server *Server
		driver *testutils.MockStorageDriver
		svc    *memory.Service
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = testutils.NewMockStorageDriver()

		var err error
		svc, err = memory.NewService(memory.Config{
			Driver:     driver,
			Logger:     logger.Nop(),
			Host:       "localhost:8000",
			Collection: "memories",
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{Service: svc, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	create := func(input CreateInput) Memory {
		res, out, err := server.handleCreate(ctx, nil, input)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeFalse(), resultText(res))
		return out
	}

	Describe("NewServer", func() {
		It("returns an error when the service is nil", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(MatchError("memory service is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := NewServer(Config{Service: svc})
			Expect(err).To(MatchError("logger is required"))
		})

		It("builds an empty server in noop mode", func() {
			noop, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(noop.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("memory_create", func() {
		It("stores the memory and echoes it as JSON text", func() {
			res, out, err := server.handleCreate(ctx, nil, CreateInput{
				Content:     "prefers tabs",
				Agent:       "coder",
				DecayPolicy: "reinforceable",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Content).To(Equal("prefers tabs"))
			Expect(out.DecayPolicy).To(Equal("reinforceable"))
			Expect(out.Confidence).To(Equal(1.0))

			var echoed Memory
			Expect(json.Unmarshal([]byte(resultText(res)), &echoed)).To(Succeed())
			Expect(echoed).To(Equal(out))
		})

		It("defaults to the stable policy", func() {
			Expect(create(CreateInput{Content: "x"}).DecayPolicy).To(Equal("stable"))
		})

		It("rejects empty content", func() {
			res, _, err := server.handleCreate(ctx, nil, CreateInput{Content: "  "})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(Equal("content is required"))
		})

		It("rejects an unknown decay policy", func() {
			res, _, err := server.handleCreate(ctx, nil, CreateInput{Content: "x", DecayPolicy: "forever"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(ContainSubstring("forever"))
		})

		It("reports storage failures", func() {
			driver.FailStore = true
			res, _, err := server.handleCreate(ctx, nil, CreateInput{Content: "x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(HavePrefix("Storage backend unavailable"))
		})
	})

	Describe("memory_search", func() {
		BeforeEach(func() {
			create(CreateInput{Content: "prefers tabs", Agent: "coder"})
			create(CreateInput{Content: "likes coffee", Agent: "barista"})
		})

		It("returns nested results with their distance", func() {
			res, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "tabs"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Query).To(Equal("tabs"))
			Expect(out.Count).To(Equal(2))
			Expect(out.Results).To(HaveLen(2))
		})

		It("forwards filters", func() {
			global := false
			_, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "x", Agent: "barista", Global: &global, Limit: 4})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].Memory.Agent).To(Equal("barista"))
			Expect(driver.LastLimit).To(Equal(4))
			Expect(driver.LastFilter).To(HaveKeyWithValue("global", false))
		})

		It("returns an empty list, not null", func() {
			_, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "x", Agent: "nobody"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Results).NotTo(BeNil())
			Expect(out.Results).To(BeEmpty())
		})

		It("requires a query", func() {
			res, _, err := server.handleSearch(ctx, nil, SearchInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(Equal("query is required"))
		})

		It("rejects a confidence floor outside [0, 1]", func() {
			floor := 1.5
			res, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "x", MinConfidence: &floor})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
		})
	})

	Describe("memory_get", func() {
		It("returns the memory", func() {
			created := create(CreateInput{Content: "x"})

			_, out, err := server.handleGet(ctx, nil, IDInput{ID: created.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(created))
		})

		It("reports missing memories", func() {
			res, _, err := server.handleGet(ctx, nil, IDInput{ID: "nope"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(Equal("Memory 'nope' not found"))
		})

		It("requires an id", func() {
			res, _, err := server.handleGet(ctx, nil, IDInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(Equal("id is required"))
		})
	})

	Describe("memory_reinforce", func() {
		It("reinforces reinforceable memories", func() {
			created := create(CreateInput{Content: "x", DecayPolicy: "reinforceable"})

			res, out, err := server.handleReinforce(ctx, nil, IDInput{ID: created.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.ID).To(Equal(created.ID))
			Expect(out.Confidence).To(Equal(1.0))
			Expect(out.LastReinforcedAt).NotTo(BeEmpty())
		})

		It("rejects contextual memories", func() {
			created := create(CreateInput{Content: "x", DecayPolicy: "contextual"})

			res, _, err := server.handleReinforce(ctx, nil, IDInput{ID: created.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(Equal("Memory has contextual decay policy, reinforcement is not supported"))
		})
	})

	Describe("memory_delete", func() {
		It("soft-deletes once", func() {
			created := create(CreateInput{Content: "x"})

			_, out, err := server.handleDelete(ctx, nil, IDInput{ID: created.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(DeleteOutput{ID: created.ID, Deleted: true}))

			res, _, err := server.handleDelete(ctx, nil, IDInput{ID: created.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(resultText(res)).To(ContainSubstring("already deleted"))
		})
	})

	Describe("memory_status", func() {
		It("reports the backend", func() {
			create(CreateInput{Content: "x"})

			res, out, err := server.handleStatus(ctx, nil, struct{}{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out).To(Equal(StatusOutput{
				Status:     memory.StatusHealthy,
				Host:       "localhost:8000",
				Collection: "memories",
				Count:      1,
			}))
		})

		It("reports an unhealthy backend without failing the tool", func() {
			driver.HeartbeatDown = true

			res, out, err := server.handleStatus(ctx, nil, struct{}{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(out.Status).To(Equal(memory.StatusUnhealthy))
		})
	})
})
