package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/memories/pkg/decay"
	"github.com/papercomputeco/memories/pkg/memory"
)

var (
	createToolName    = "memory_create"
	createDescription = "Store a new memory for an agent. Memories carry free-form tags (agent, personality, project, type), a global flag for memories every agent should see, and a decay policy: stable (never decays, default), contextual (decays from creation) or reinforceable (decays from the last reinforcement)."

	searchToolName    = "memory_search"
	searchDescription = "Search stored memories by meaning. Returns live memories closest to the query whose current confidence is at least min_confidence. similarity is a distance: lower is closer."

	getToolName    = "memory_get"
	getDescription = "Fetch one memory by id with its current confidence."

	reinforceToolName    = "memory_reinforce"
	reinforceDescription = "Reinforce a memory with the reinforceable decay policy, resetting its confidence to 1.0. Stable and contextual memories cannot be reinforced."

	deleteToolName    = "memory_delete"
	deleteDescription = "Soft-delete a memory. Deleted memories are never returned again."

	statusToolName    = "memory_status"
	statusDescription = "Report whether the memory storage backend is reachable and how many records it holds."
)

// CreateInput represents the input arguments for the memory_create tool.
type CreateInput struct {
	Content     string `json:"content" jsonschema:"the text of the memory"`
	Agent       string `json:"agent,omitempty" jsonschema:"agent that owns the memory"`
	Personality string `json:"personality,omitempty" jsonschema:"personality of the agent"`
	Project     string `json:"project,omitempty" jsonschema:"project the memory belongs to"`
	Type        string `json:"type,omitempty" jsonschema:"kind of memory, e.g. preference or fact"`
	Global      bool   `json:"global,omitempty" jsonschema:"make the memory visible to every agent"`
	DecayPolicy string `json:"decay_policy,omitempty" jsonschema:"stable, contextual or reinforceable (default: stable)"`
}

// SearchInput represents the input arguments for the memory_search tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"the search query text"`
	Agent         string   `json:"agent,omitempty" jsonschema:"only memories of this agent"`
	Personality   string   `json:"personality,omitempty" jsonschema:"only memories with this personality"`
	Project       string   `json:"project,omitempty" jsonschema:"only memories of this project"`
	Type          string   `json:"type,omitempty" jsonschema:"only memories of this type"`
	Global        *bool    `json:"global,omitempty" jsonschema:"only global (true) or only non-global (false) memories"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of candidates (default: configured limit)"`
	MinConfidence *float64 `json:"min_confidence,omitempty" jsonschema:"confidence floor between 0 and 1 (default: configured floor)"`
}

// IDInput represents the input of the tools addressing a single memory.
type IDInput struct {
	ID string `json:"id" jsonschema:"the memory id"`
}

// Memory is a memory as returned by the tools.
type Memory struct {
	ID               string  `json:"id"`
	Content          string  `json:"content"`
	Agent            string  `json:"agent"`
	Personality      string  `json:"personality"`
	Project          string  `json:"project"`
	Type             string  `json:"type"`
	Global           bool    `json:"global"`
	DecayPolicy      string  `json:"decay_policy"`
	Confidence       float64 `json:"confidence"`
	CreatedAt        string  `json:"created_at"`
	LastReinforcedAt string  `json:"last_reinforced_at"`
}

// SearchResult is a search hit.
type SearchResult struct {
	Memory     Memory  `json:"memory"`
	Similarity float64 `json:"similarity"`
}

// SearchOutput represents the output of the memory_search tool.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// ReinforceOutput represents the output of the memory_reinforce tool.
type ReinforceOutput struct {
	ID               string  `json:"id"`
	Confidence       float64 `json:"confidence"`
	LastReinforcedAt string  `json:"last_reinforced_at"`
}

// DeleteOutput represents the output of the memory_delete tool.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// StatusOutput represents the output of the memory_status tool.
type StatusOutput struct {
	Status     string `json:"status"`
	Host       string `json:"host"`
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

func (s *Server) handleCreate(ctx context.Context, _ *mcp.CallToolRequest, input CreateInput) (*mcp.CallToolResult, Memory, error) {
	if strings.TrimSpace(input.Content) == "" {
		return toolError("content is required"), Memory{}, nil
	}

	resp, err := s.config.Service.Create(ctx, memory.CreateRequest{
		Content:     input.Content,
		Agent:       input.Agent,
		Personality: input.Personality,
		Project:     input.Project,
		Type:        input.Type,
		Global:      input.Global,
		DecayPolicy: decay.Policy(input.DecayPolicy),
	})
	if err != nil {
		return s.failure(createToolName, err), Memory{}, nil
	}

	return result(toMemory(resp))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return toolError("query is required"), SearchOutput{}, nil
	}
	if input.MinConfidence != nil && (*input.MinConfidence < 0 || *input.MinConfidence > 1) {
		return toolError("min_confidence must be between 0 and 1"), SearchOutput{}, nil
	}

	s.config.Logger.Debug("MCP search request",
		"query", input.Query,
		"limit", input.Limit,
	)

	resp, err := s.config.Service.Search(ctx, memory.SearchRequest{
		Query:         input.Query,
		Agent:         input.Agent,
		Personality:   input.Personality,
		Project:       input.Project,
		Type:          input.Type,
		Global:        input.Global,
		Limit:         input.Limit,
		MinConfidence: input.MinConfidence,
	})
	if err != nil {
		return s.failure(searchToolName, err), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: make([]SearchResult, 0, len(resp.Results)),
		Count:   resp.Count,
	}
	for i := range resp.Results {
		output.Results = append(output.Results, SearchResult{
			Memory:     toMemory(&resp.Results[i].MemoryResponse),
			Similarity: resp.Results[i].Similarity,
		})
	}

	return result(output)
}

func (s *Server) handleGet(ctx context.Context, _ *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, Memory, error) {
	if input.ID == "" {
		return toolError("id is required"), Memory{}, nil
	}

	resp, err := s.config.Service.Get(ctx, input.ID)
	if err != nil {
		return s.failure(getToolName, err), Memory{}, nil
	}

	return result(toMemory(resp))
}

func (s *Server) handleReinforce(ctx context.Context, _ *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, ReinforceOutput, error) {
	if input.ID == "" {
		return toolError("id is required"), ReinforceOutput{}, nil
	}

	resp, err := s.config.Service.Reinforce(ctx, input.ID)
	if err != nil {
		return s.failure(reinforceToolName, err), ReinforceOutput{}, nil
	}

	return result(ReinforceOutput{
		ID:               resp.ID,
		Confidence:       float64(resp.Confidence),
		LastReinforcedAt: resp.LastReinforcedAt,
	})
}

func (s *Server) handleDelete(ctx context.Context, _ *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, DeleteOutput, error) {
	if input.ID == "" {
		return toolError("id is required"), DeleteOutput{}, nil
	}

	resp, err := s.config.Service.Delete(ctx, input.ID)
	if err != nil {
		return s.failure(deleteToolName, err), DeleteOutput{}, nil
	}

	return result(DeleteOutput{ID: resp.ID, Deleted: resp.Deleted})
}

func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, StatusOutput, error) {
	status := s.config.Service.Status(ctx)
	return result(StatusOutput{
		Status:     status.Status,
		Host:       status.Host,
		Collection: status.Collection,
		Count:      status.Count,
	})
}

// failure turns a service error into a tool error result. Backend failures
// are logged; the rest are the caller's to fix.
func (s *Server) failure(tool string, err error) *mcp.CallToolResult {
	if memory.KindOf(err) == memory.KindBackendUnavailable {
		s.config.Logger.Error("MCP tool failed", "tool", tool, "error", err)
		return toolError(fmt.Sprintf("Storage backend unavailable: %v", err))
	}
	return toolError(err.Error())
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// result returns out as structured content plus its JSON serialization in a
// TextContent block for clients without structured content support.
func result[T any](out T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(out)
	if err != nil {
		var zero T
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, out, nil
}

func toMemory(m *memory.MemoryResponse) Memory {
	return Memory{
		ID:               m.ID,
		Content:          m.Content,
		Agent:            m.Agent,
		Personality:      m.Personality,
		Project:          m.Project,
		Type:             m.Type,
		Global:           m.Global,
		DecayPolicy:      string(m.DecayPolicy),
		Confidence:       float64(m.Confidence),
		CreatedAt:        m.CreatedAt,
		LastReinforcedAt: m.LastReinforcedAt,
	}
}
