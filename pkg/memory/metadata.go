package memory

import (
	"fmt"
	"time"

	"github.com/papercomputeco/memories/pkg/decay"
	"github.com/papercomputeco/memories/pkg/storage"
)

// Metadata keys persisted with every memory.
const (
	KeyAgent            = "agent"
	KeyPersonality      = "personality"
	KeyProject          = "project"
	KeyType             = "type"
	KeyGlobal           = "global"
	KeyDecayPolicy      = "decay_policy"
	KeyCreatedAt        = "created_at"
	KeyLastReinforcedAt = "last_reinforced_at"
	KeyDeleted          = "deleted"
)

// naiveLayout parses timestamps written without an offset; they are UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime accepts RFC 3339 with either "Z" or a numeric offset such as
// "+00:00", and offset-less timestamps. The empty string is the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(naiveLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func newMetadata(req CreateRequest, createdAt string) storage.Metadata {
	return storage.Metadata{
		KeyAgent:            req.Agent,
		KeyPersonality:      req.Personality,
		KeyProject:          req.Project,
		KeyType:             req.Type,
		KeyGlobal:           req.Global,
		KeyDecayPolicy:      string(req.DecayPolicy),
		KeyCreatedAt:        createdAt,
		KeyLastReinforcedAt: "",
		KeyDeleted:          false,
	}
}

// toResponse rebuilds a memory from a stored record, computing its
// confidence at now.
func toResponse(rec *storage.Record, halfLifeHours float64, now time.Time) (MemoryResponse, error) {
	m := rec.Metadata

	createdAt, err := parseTime(m.String(KeyCreatedAt))
	if err != nil {
		return MemoryResponse{}, fmt.Errorf("memory %s: created_at: %w", rec.ID, err)
	}

	lastReinforcedAt, err := parseTime(m.String(KeyLastReinforcedAt))
	if err != nil {
		return MemoryResponse{}, fmt.Errorf("memory %s: last_reinforced_at: %w", rec.ID, err)
	}

	policy := decay.Policy(m.String(KeyDecayPolicy))

	return MemoryResponse{
		ID:               rec.ID,
		Content:          rec.Content,
		Agent:            m.String(KeyAgent),
		Personality:      m.String(KeyPersonality),
		Project:          m.String(KeyProject),
		Type:             m.String(KeyType),
		Global:           m.Bool(KeyGlobal),
		DecayPolicy:      policy,
		Confidence:       Confidence(decay.Confidence(policy, createdAt, lastReinforcedAt, halfLifeHours, now)),
		CreatedAt:        m.String(KeyCreatedAt),
		LastReinforcedAt: m.String(KeyLastReinforcedAt),
	}, nil
}
