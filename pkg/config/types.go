package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent memories configuration stored as
// config.toml in the .memories/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	Search    SearchConfig    `toml:"search"`
	Decay     DecayConfig     `toml:"decay"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Events    EventsConfig    `toml:"events"`
	API       APIConfig       `toml:"api"`
}

// StorageConfig selects the vector storage backend.
type StorageConfig struct {
	Provider string `toml:"provider,omitempty"`

	// Target is a URL, host:port, file path or connection string depending
	// on the provider. Empty means the provider's default.
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// SearchConfig holds search defaults. Numeric fields are always written so
// an explicit zero survives a round trip.
type SearchConfig struct {
	DefaultLimit  int     `toml:"default_limit"`
	MinConfidence float64 `toml:"min_confidence"`
}

// DecayConfig holds decay settings.
type DecayConfig struct {
	HalfLifeHours float64 `toml:"half_life_hours"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`

	// CacheSize is the number of embeddings kept in memory. 0 disables the cache.
	CacheSize int64 `toml:"cache_size"`
}

// EventsConfig holds lifecycle event publishing settings.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of Kafka brokers.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider":   stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.target":     stringKey(func(c *Config) *string { return &c.Storage.Target }),
	"storage.collection": stringKey(func(c *Config) *string { return &c.Storage.Collection }),
	"search.default_limit": {
		get: func(c *Config) string { return strconv.Itoa(c.Search.DefaultLimit) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for search.default_limit: %w", err)
			}
			c.Search.DefaultLimit = n
			return nil
		},
	},
	"search.min_confidence": floatKey("search.min_confidence", func(c *Config) *float64 { return &c.Search.MinConfidence }),
	"decay.half_life_hours": floatKey("decay.half_life_hours", func(c *Config) *float64 { return &c.Decay.HalfLifeHours }),
	"embedding.provider":    stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":      stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":       stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.api_key":     stringKey(func(c *Config) *string { return &c.Embedding.APIKey }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.cache_size": {
		get: func(c *Config) string { return strconv.FormatInt(c.Embedding.CacheSize, 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.cache_size: %w", err)
			}
			c.Embedding.CacheSize = n
			return nil
		},
	},
	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"api.listen":      stringKey(func(c *Config) *string { return &c.API.Listen }),
}
