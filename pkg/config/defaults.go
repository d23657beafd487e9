package config

import (
	"github.com/papercomputeco/memories/pkg/decay"
	"github.com/papercomputeco/memories/pkg/memory"
)

const (
	defaultStorageProvider   = "chroma"
	defaultStorageCollection = "memories"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingCacheSize  = 1024

	defaultEventsProvider = "nop"
	defaultEventsBrokers  = "localhost:9092"
	defaultEventsTopic    = "memories.events"

	defaultAPIListen = ":8090"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
//
// Storage.Target is left empty: each provider resolves its own default
// (see storageutils.DefaultTarget).
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:   defaultStorageProvider,
			Collection: defaultStorageCollection,
		},
		Search: SearchConfig{
			DefaultLimit:  memory.DefaultLimit,
			MinConfidence: memory.DefaultMinConfidence,
		},
		Decay: DecayConfig{
			HalfLifeHours: decay.DefaultHalfLifeHours,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			CacheSize:  defaultEmbeddingCacheSize,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Brokers:  defaultEventsBrokers,
			Topic:    defaultEventsTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
