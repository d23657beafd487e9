package testutils

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/papercomputeco/memories/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	calls  atomic.Int64
	closed atomic.Bool
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", embeddings.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return []float32{0.1, 0.2, 0.3}, nil
}

// Calls returns how many times Embed was invoked.
func (m *MockEmbedder) Calls() int64 {
	return m.calls.Load()
}

// Closed reports whether Close was called.
func (m *MockEmbedder) Closed() bool {
	return m.closed.Load()
}

func (m *MockEmbedder) Close() error {
	m.closed.Store(true)
	return nil
}
