// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/memories/pkg/embeddings"
	"github.com/papercomputeco/memories/pkg/embeddings/cache"
	"github.com/papercomputeco/memories/pkg/embeddings/hash"
	"github.com/papercomputeco/memories/pkg/embeddings/ollama"
	"github.com/papercomputeco/memories/pkg/embeddings/openai"
)

// Provider names accepted by NewEmbedder.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   uint

	// CacheSize wraps the embedder in a ristretto cache when positive.
	CacheSize int64
}

// Providers returns the supported embedding providers.
func Providers() []string {
	return []string{ProviderOllama, ProviderOpenAI, ProviderHash}
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)

	switch o.ProviderType {
	case ProviderOllama:
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case ProviderOpenAI:
		e, err = openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:  o.APIKey,
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case ProviderHash:
		e = hash.NewEmbedder(o.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	if o.CacheSize <= 0 {
		return e, nil
	}

	return cache.NewEmbedder(e, o.CacheSize)
}
