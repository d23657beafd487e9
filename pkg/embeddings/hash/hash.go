// Package hash implements an offline embedder that needs no model server.
//
// Each lowercase word is hashed (FNV-1a) into a bucket of a fixed-size
// vector and the result is L2-normalized. Texts sharing words land close
// together, which is enough for local development, demos and tests. It is
// not a semantic model.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/papercomputeco/memories/pkg/embeddings"
)

// DefaultDimensions is used when no dimensions are configured.
const DefaultDimensions = 384

// Embedder is a deterministic bag-of-words hashing embedder.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates a hashing embedder producing vectors of the given size.
func NewEmbedder(dimensions uint) *Embedder {
	d := int(dimensions)
	if d <= 0 {
		d = DefaultDimensions
	}
	return &Embedder{dimensions: d}
}

// Embed converts text into a normalized vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()

		idx := int(sum % uint32(e.dimensions))
		// Use one hash bit as the sign so unrelated words partly cancel.
		if sum&(1<<31) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}

	return vec, nil
}

// Dimensions returns the vector size produced by Embed.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)
