// Package cache wraps an embedder with an in-process ristretto cache.
//
// Searches repeat the same query text often (agents re-asking the same
// question) and remote embedders are the slowest hop of a search, so
// identical texts are embedded once.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/papercomputeco/memories/pkg/embeddings"
)

// Embedder caches the vectors returned by an underlying embedder.
type Embedder struct {
	next  embeddings.Embedder
	cache *ristretto.Cache
}

// NewEmbedder wraps next with a cache holding roughly size entries.
func NewEmbedder(next embeddings.Embedder, size int64) (*Embedder, error) {
	if next == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	return &Embedder{next: next, cache: c}, nil
}

// Embed returns the cached vector for text, embedding it on a miss.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Set(text, vec, 1)
	return vec, nil
}

// Wait blocks until pending cache writes are visible. Sets are buffered by
// ristretto.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache and closes the wrapped embedder.
func (e *Embedder) Close() error {
	e.cache.Close()
	return e.next.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
