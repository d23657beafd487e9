package config

import (
	"fmt"
	"slices"
	"strings"

	embeddingutils "github.com/papercomputeco/memories/pkg/embeddings/utils"
	eventstreamutils "github.com/papercomputeco/memories/pkg/eventstream/utils"
	storageutils "github.com/papercomputeco/memories/pkg/storage/utils"
)

// Validate rejects settings the service cannot run with.
func (cfg *Config) Validate() error {
	if err := oneOf("storage.provider", cfg.Storage.Provider, storageutils.Providers()); err != nil {
		return err
	}
	if err := oneOf("embedding.provider", cfg.Embedding.Provider, embeddingutils.Providers()); err != nil {
		return err
	}
	if err := oneOf("events.provider", cfg.Events.Provider, eventstreamutils.Providers()); err != nil {
		return err
	}

	if cfg.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.MinConfidence < 0 || cfg.Search.MinConfidence > 1 {
		return fmt.Errorf("search.min_confidence must be between 0 and 1, got %v", cfg.Search.MinConfidence)
	}
	if cfg.Decay.HalfLifeHours <= 0 {
		return fmt.Errorf("decay.half_life_hours must be positive, got %v", cfg.Decay.HalfLifeHours)
	}
	if cfg.Embedding.CacheSize < 0 {
		return fmt.Errorf("embedding.cache_size cannot be negative, got %d", cfg.Embedding.CacheSize)
	}

	return nil
}

func oneOf(key, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q (available: %s)", key, value, strings.Join(allowed, ", "))
}
