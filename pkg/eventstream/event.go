package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryCreated is emitted after a memory is stored.
	EventTypeMemoryCreated = "memories.memory.created"

	// EventTypeMemoryReinforced is emitted after a memory's decay clock is reset.
	EventTypeMemoryReinforced = "memories.memory.reinforced"

	// EventTypeMemoryDeleted is emitted after a memory is soft-deleted.
	EventTypeMemoryDeleted = "memories.memory.deleted"
)

// MemoryEvent is a transport-neutral event payload for a memory lifecycle change.
type MemoryEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	MemoryID      string    `json:"memory_id"`
	Agent         string    `json:"agent,omitempty"`
	Project       string    `json:"project,omitempty"`
	DecayPolicy   string    `json:"decay_policy"`
}

// NewMemoryEvent builds a v1 event with a fresh event id.
func NewMemoryEvent(eventType, memoryID, agent, project, decayPolicy string, emittedAt time.Time) *MemoryEvent {
	return &MemoryEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     emittedAt.UTC(),
		MemoryID:      memoryID,
		Agent:         agent,
		Project:       project,
		DecayPolicy:   decayPolicy,
	}
}
