package memory

import (
	"strconv"

	"github.com/papercomputeco/memories/pkg/decay"
)

// Confidence is a score in [0, 1]. It always marshals with a decimal point,
// so full confidence is written 1.0 rather than 1.
type Confidence float64

func (c Confidence) MarshalJSON() ([]byte, error) {
	f := float64(c)
	if f == float64(int64(f)) {
		return []byte(strconv.FormatFloat(f, 'f', 1, 64)), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

func (c Confidence) String() string {
	b, _ := c.MarshalJSON()
	return string(b)
}

// CreateRequest is the input for Service.Create.
type CreateRequest struct {
	Content     string       `json:"content"`
	Agent       string       `json:"agent"`
	Personality string       `json:"personality"`
	Project     string       `json:"project"`
	Type        string       `json:"type"`
	Global      bool         `json:"global"`
	DecayPolicy decay.Policy `json:"decay_policy"`
}

// SearchRequest is the input for Service.Search. Empty tags and a nil
// Global mean "no constraint".
type SearchRequest struct {
	Query       string `json:"query"`
	Agent       string `json:"agent,omitempty"`
	Personality string `json:"personality,omitempty"`
	Project     string `json:"project,omitempty"`
	Type        string `json:"type,omitempty"`
	Global      *bool  `json:"global,omitempty"`

	// Limit caps the candidates asked of the backend. Non-positive uses
	// the service default.
	Limit int `json:"limit,omitempty"`

	// MinConfidence drops results below it. Nil uses the service default.
	MinConfidence *float64 `json:"min_confidence,omitempty"`
}

// MemoryResponse is a memory as presented to callers.
type MemoryResponse struct {
	ID               string       `json:"id"`
	Content          string       `json:"content"`
	Agent            string       `json:"agent"`
	Personality      string       `json:"personality"`
	Project          string       `json:"project"`
	Type             string       `json:"type"`
	Global           bool         `json:"global"`
	DecayPolicy      decay.Policy `json:"decay_policy"`
	Confidence       Confidence   `json:"confidence"`
	CreatedAt        string       `json:"created_at"`
	LastReinforcedAt string       `json:"last_reinforced_at"`
}

// SearchResultItem is a memory plus the backend's score for it. Similarity
// carries the backend distance unchanged: lower means closer.
type SearchResultItem struct {
	MemoryResponse
	Similarity float64 `json:"similarity"`
}

// SearchResponse holds the results that survived the confidence floor, in
// backend order.
type SearchResponse struct {
	Results []SearchResultItem `json:"results"`
	Count   int                `json:"count"`
}

// ReinforceResponse confirms a reinforcement.
type ReinforceResponse struct {
	ID               string     `json:"id"`
	Confidence       Confidence `json:"confidence"`
	LastReinforcedAt string     `json:"last_reinforced_at"`
}

// DeleteResponse confirms a soft-delete.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Health values reported by Service.Status.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// StatusResponse describes the storage backend.
type StatusResponse struct {
	Status     string `json:"status"`
	Host       string `json:"host"`
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// Healthy reports whether the backend answered.
func (s *StatusResponse) Healthy() bool {
	return s.Status == StatusHealthy
}
