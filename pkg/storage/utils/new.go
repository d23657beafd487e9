// Package storageutils builds storage drivers from configuration.
package storageutils

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/memories/pkg/embeddings"
	"github.com/papercomputeco/memories/pkg/storage"
	"github.com/papercomputeco/memories/pkg/storage/chroma"
	"github.com/papercomputeco/memories/pkg/storage/chromem"
	"github.com/papercomputeco/memories/pkg/storage/inmemory"
	"github.com/papercomputeco/memories/pkg/storage/postgres"
	"github.com/papercomputeco/memories/pkg/storage/qdrant"
	"github.com/papercomputeco/memories/pkg/storage/sqlite"
)

// Provider names accepted by NewDriver.
const (
	ProviderChroma   = "chroma"
	ProviderQdrant   = "qdrant"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderChromem  = "chromem"
	ProviderInMemory = "inmemory"
)

var displayNames = map[string]string{
	ProviderChroma:   "ChromaDB",
	ProviderQdrant:   "Qdrant",
	ProviderSQLite:   "SQLite",
	ProviderPostgres: "PostgreSQL",
	ProviderChromem:  "chromem",
	ProviderInMemory: "in-memory storage",
}

type NewDriverOpts struct {
	ProviderType   string
	Target         string
	CollectionName string

	// Dimensions sizes collections for backends that need it up front.
	Dimensions uint

	Embedder embeddings.Embedder
	Logger   *slog.Logger
}

// Providers returns the supported storage providers.
func Providers() []string {
	return []string{
		ProviderChroma,
		ProviderQdrant,
		ProviderSQLite,
		ProviderPostgres,
		ProviderChromem,
		ProviderInMemory,
	}
}

// DisplayName is the human name of a provider, used in connection errors.
func DisplayName(provider string) string {
	if name, ok := displayNames[provider]; ok {
		return name
	}
	return provider
}

// DefaultTarget returns the target a provider uses when none is configured.
// File backed providers live under dir, the resolved .memories directory.
func DefaultTarget(provider, dir string) string {
	switch provider {
	case ProviderChroma:
		return "http://localhost:8000"
	case ProviderQdrant:
		return "localhost:6334"
	case ProviderSQLite:
		return filepath.Join(dir, "memories.db")
	case ProviderChromem:
		return filepath.Join(dir, "chromem")
	default:
		return ""
	}
}

// DisplayTarget renders a target for humans: URLs lose their scheme and
// credentials so "http://localhost:8000" reads "localhost:8000".
func DisplayTarget(target string) string {
	if !strings.Contains(target, "://") {
		return target
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	return u.Host
}

func NewDriver(o *NewDriverOpts) (storage.Driver, error) {
	switch o.ProviderType {
	case ProviderChroma:
		return chroma.NewDriver(chroma.Config{
			URL:            o.Target,
			CollectionName: o.CollectionName,
			Embedder:       o.Embedder,
		}, o.Logger)
	case ProviderQdrant:
		return qdrant.NewDriver(qdrant.Config{
			Target:         o.Target,
			CollectionName: o.CollectionName,
			Dimensions:     o.Dimensions,
			Embedder:       o.Embedder,
		}, o.Logger)
	case ProviderSQLite:
		return sqlite.NewDriver(sqlite.Config{
			DBPath:         o.Target,
			CollectionName: o.CollectionName,
			Embedder:       o.Embedder,
		}, o.Logger)
	case ProviderPostgres:
		return postgres.NewDriver(postgres.Config{
			ConnString:     o.Target,
			CollectionName: o.CollectionName,
			Embedder:       o.Embedder,
		}, o.Logger)
	case ProviderChromem:
		return chromem.NewDriver(chromem.Config{
			Path:           o.Target,
			Compress:       true,
			CollectionName: o.CollectionName,
			Embedder:       o.Embedder,
		}, o.Logger)
	case ProviderInMemory:
		return inmemory.NewDriver(o.Embedder), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.ProviderType)
	}
}
