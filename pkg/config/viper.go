package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/papercomputeco/memories/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by InitViper.
const EnvPrefix = "MEMORIES"

// dotEnvFile is loaded from the working directory when present.
const dotEnvFile = ".env"

// legacyEnv maps config keys to the environment variables read by earlier
// deployments. They are consulted after the MEMORIES_ variable.
var legacyEnv = map[string]string{
	"storage.collection":    "COLLECTION_NAME",
	"search.default_limit":  "DEFAULT_LIMIT",
	"search.min_confidence": "MIN_CONFIDENCE",
	"decay.half_life_hours": "DECAY_HALF_LIFE_HOURS",
	"embedding.api_key":     "OPENAI_API_KEY",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// found via dotdir resolution, loads a .env file and binds environment
// variables with the MEMORIES_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MEMORIES_STORAGE_PROVIDER, COLLECTION_NAME, etc.)
//  3. .env file values
//  4. config.toml file values
//  5. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. .env never overrides variables already set in the environment.
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", dotEnvFile, err)
	}

	// 4. Environment variables: MEMORIES_STORAGE_PROVIDER, MEMORIES_API_LISTEN, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", legacy, err)
		}
	}

	return v, nil
}

// FromViper materializes and validates the effective configuration.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			Provider:   v.GetString("storage.provider"),
			Target:     v.GetString("storage.target"),
			Collection: v.GetString("storage.collection"),
		},
		Search: SearchConfig{
			DefaultLimit:  v.GetInt("search.default_limit"),
			MinConfidence: v.GetFloat64("search.min_confidence"),
		},
		Decay: DecayConfig{
			HalfLifeHours: v.GetFloat64("decay.half_life_hours"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			APIKey:     v.GetString("embedding.api_key"),
			Dimensions: v.GetUint("embedding.dimensions"),
			CacheSize:  v.GetInt64("embedding.cache_size"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
	}

	if cfg.Storage.Target == "" && cfg.Storage.Provider == defaultStorageProvider {
		cfg.Storage.Target = legacyChromaTarget()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// legacyChromaTarget builds a chroma URL from CHROMADB_HOST and
// CHROMADB_PORT. It returns "" when CHROMADB_HOST is unset.
func legacyChromaTarget() string {
	host := os.Getenv("CHROMADB_HOST")
	if host == "" {
		return ""
	}

	port := os.Getenv("CHROMADB_PORT")
	if port == "" {
		port = "8000"
	}

	return "http://" + net.JoinHostPort(host, port)
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.target", d.Storage.Target)
	v.SetDefault("storage.collection", d.Storage.Collection)

	// Search
	v.SetDefault("search.default_limit", d.Search.DefaultLimit)
	v.SetDefault("search.min_confidence", d.Search.MinConfidence)

	// Decay
	v.SetDefault("decay.half_life_hours", d.Decay.HalfLifeHours)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// API
	v.SetDefault("api.listen", d.API.Listen)
}
