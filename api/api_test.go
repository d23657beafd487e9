package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memories/pkg/logger"
	"github.com/papercomputeco/memories/pkg/memory"
	testutils "github.com/papercomputeco/memories/pkg/utils/test"
)

func doRequest(s *Server, method, target, body string) (int, map[string]any) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		Expect(json.Unmarshal(raw, &out)).To(Succeed())
	}
	return resp.StatusCode, out
}

var _ = Describe("Server", func() {
	var (
		server *Server
		driver *testutils.MockStorageDriver
	)

	BeforeEach(func() {
		driver = testutils.NewMockStorageDriver()

		svc, err := memory.NewService(memory.Config{
			Driver:     driver,
			Logger:     logger.Nop(),
			Host:       "localhost:8000",
			Collection: "memories",
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{ListenAddr: ":0"}, svc, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	create := func(body string) map[string]any {
		code, out := doRequest(server, http.MethodPost, "/v1/memories", body)
		Expect(code).To(Equal(fiber.StatusCreated))
		return out
	}

	Describe("NewServer", func() {
		It("requires a service", func() {
			_, err := NewServer(Config{}, nil, logger.Nop())
			Expect(err).To(MatchError("memory service is required"))
		})

		It("requires a logger", func() {
			svc, err := memory.NewService(memory.Config{Driver: driver, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			_, err = NewServer(Config{}, svc, nil)
			Expect(err).To(MatchError("logger is required"))
		})
	})

	Describe("GET /ping", func() {
		It("answers pong", func() {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal(`"pong"`))
		})
	})

	Describe("POST /v1/memories", func() {
		It("creates a memory", func() {
			out := create(`{"content":"prefers tabs","agent":"coder","decay_policy":"reinforceable"}`)
			Expect(out["id"]).NotTo(BeEmpty())
			Expect(out["content"]).To(Equal("prefers tabs"))
			Expect(out["agent"]).To(Equal("coder"))
			Expect(out["decay_policy"]).To(Equal("reinforceable"))
			Expect(out["confidence"]).To(BeNumerically("==", 1))
			Expect(out["last_reinforced_at"]).To(Equal(""))
		})

		It("defaults to the stable policy", func() {
			out := create(`{"content":"prefers tabs"}`)
			Expect(out["decay_policy"]).To(Equal("stable"))
		})

		It("rejects an unknown decay policy", func() {
			code, out := doRequest(server, http.MethodPost, "/v1/memories", `{"content":"x","decay_policy":"forever"}`)
			Expect(code).To(Equal(fiber.StatusBadRequest))
			Expect(out["error"]).To(ContainSubstring("forever"))
		})

		It("rejects missing content", func() {
			code, out := doRequest(server, http.MethodPost, "/v1/memories", `{"agent":"coder"}`)
			Expect(code).To(Equal(fiber.StatusBadRequest))
			Expect(out["error"]).To(Equal("content is required"))
		})

		It("rejects a malformed body", func() {
			code, out := doRequest(server, http.MethodPost, "/v1/memories", `{"content":`)
			Expect(code).To(Equal(fiber.StatusBadRequest))
			Expect(out["error"]).To(Equal("invalid request body"))
		})

		It("reports storage failures as 503", func() {
			driver.FailStore = true
			code, out := doRequest(server, http.MethodPost, "/v1/memories", `{"content":"x"}`)
			Expect(code).To(Equal(fiber.StatusServiceUnavailable))
			Expect(out["error"]).To(Equal("storage backend unavailable"))
		})
	})

	Describe("GET /v1/memories/:id", func() {
		It("returns the memory", func() {
			id := create(`{"content":"prefers tabs"}`)["id"].(string)

			code, out := doRequest(server, http.MethodGet, "/v1/memories/"+id, "")
			Expect(code).To(Equal(fiber.StatusOK))
			Expect(out["id"]).To(Equal(id))
			Expect(out["content"]).To(Equal("prefers tabs"))
		})

		It("returns 404 for an unknown id", func() {
			code, out := doRequest(server, http.MethodGet, "/v1/memories/nope", "")
			Expect(code).To(Equal(fiber.StatusNotFound))
			Expect(out["error"]).To(Equal("Memory 'nope' not found"))
		})
	})

	Describe("GET /v1/memories/search", func() {
		BeforeEach(func() {
			create(`{"content":"prefers tabs over spaces","agent":"coder"}`)
			create(`{"content":"likes dark roast coffee","agent":"barista","global":true}`)
		})

		It("returns results and a count", func() {
			code, out := doRequest(server, http.MethodGet, "/v1/memories/search?query=tabs", "")
			Expect(code).To(Equal(fiber.StatusOK))
			Expect(out["count"]).To(BeNumerically("==", 2))
			Expect(out["results"]).To(HaveLen(2))
		})

		It("passes tag and global filters to the backend", func() {
			code, _ := doRequest(server, http.MethodGet, "/v1/memories/search?query=coffee&agent=barista&global=true&limit=3", "")
			Expect(code).To(Equal(fiber.StatusOK))
			Expect(driver.LastLimit).To(Equal(3))
			Expect(driver.LastFilter).To(HaveKeyWithValue("agent", "barista"))
			Expect(driver.LastFilter).To(HaveKeyWithValue("global", true))
			Expect(driver.LastFilter).To(HaveKeyWithValue("deleted", false))
		})

		DescribeTable("rejects bad parameters",
			func(query, message string) {
				code, out := doRequest(server, http.MethodGet, "/v1/memories/search?"+query, "")
				Expect(code).To(Equal(fiber.StatusBadRequest))
				Expect(out["error"]).To(Equal(message))
			},
			Entry("missing query", "agent=coder", "query parameter is required"),
			Entry("empty query", "query=", "query parameter is required"),
			Entry("bad global", "query=x&global=maybe", "global must be true or false"),
			Entry("bad limit", "query=x&limit=0", "limit must be a positive integer"),
			Entry("bad min_confidence", "query=x&min_confidence=2", "min_confidence must be between 0 and 1"),
		)
	})

	Describe("POST /v1/memories/:id/reinforce", func() {
		It("reinforces a reinforceable memory", func() {
			id := create(`{"content":"x","decay_policy":"reinforceable"}`)["id"].(string)

			code, out := doRequest(server, http.MethodPost, "/v1/memories/"+id+"/reinforce", "")
			Expect(code).To(Equal(fiber.StatusOK))
			Expect(out["id"]).To(Equal(id))
			Expect(out["confidence"]).To(BeNumerically("==", 1))
			Expect(out["last_reinforced_at"]).NotTo(BeEmpty())
		})

		It("returns 409 for a stable memory", func() {
			id := create(`{"content":"x"}`)["id"].(string)

			code, out := doRequest(server, http.MethodPost, "/v1/memories/"+id+"/reinforce", "")
			Expect(code).To(Equal(fiber.StatusConflict))
			Expect(out["error"]).To(Equal("Memory has stable decay policy, reinforcement has no effect"))
		})
	})

	Describe("DELETE /v1/memories/:id", func() {
		It("soft-deletes and then hides the memory", func() {
			id := create(`{"content":"x"}`)["id"].(string)

			code, out := doRequest(server, http.MethodDelete, "/v1/memories/"+id, "")
			Expect(code).To(Equal(fiber.StatusOK))
			Expect(out).To(Equal(map[string]any{"id": id, "deleted": true}))

			code, _ = doRequest(server, http.MethodGet, "/v1/memories/"+id, "")
			Expect(code).To(Equal(fiber.StatusNotFound))
		})

		It("returns 409 on a second delete", func() {
			id := create(`{"content":"x"}`)["id"].(string)

			code, _ := doRequest(server, http.MethodDelete, "/v1/memories/"+id, "")
			Expect(code).To(Equal(fiber.StatusOK))

			code, out := doRequest(server, http.MethodDelete, "/v1/memories/"+id, "")
			Expect(code).To(Equal(fiber.StatusConflict))
			Expect(out["error"]).To(Equal("Memory '" + id + "' is already deleted"))
		})
	})

	Describe("GET /v1/status", func() {
		It("reports a healthy backend", func() {
			create(`{"content":"x"}`)

			code, out := doRequest(server, http.MethodGet, "/v1/status", "")
			Expect(code).To(Equal(fiber.StatusOK))
			Expect(out).To(Equal(map[string]any{
				"status":     "healthy",
				"host":       "localhost:8000",
				"collection": "memories",
				"count":      float64(1),
			}))
		})

		It("returns 503 when the backend is down", func() {
			driver.HeartbeatDown = true

			code, out := doRequest(server, http.MethodGet, "/v1/status", "")
			Expect(code).To(Equal(fiber.StatusServiceUnavailable))
			Expect(out["status"]).To(Equal("unhealthy"))
		})
	})

	It("renders unknown routes as JSON errors", func() {
		code, out := doRequest(server, http.MethodGet, "/v2/nothing", "")
		Expect(code).To(Equal(fiber.StatusNotFound))
		Expect(out).To(HaveKey("error"))
	})

	It("mounts an MCP handler at /mcp", func() {
		svc, err := memory.NewService(memory.Config{Driver: driver, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		withMCP, err := NewServer(Config{MCPHandler: mcpHandler}, svc, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		resp, err := withMCP.app.Test(httptest.NewRequest(http.MethodPost, "/mcp", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusTeapot))
	})
})
