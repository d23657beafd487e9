// Package inmemory provides a map-backed storage driver for tests and
// throwaway sessions. Nothing survives the process.
package inmemory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/papercomputeco/memories/pkg/embeddings"
	"github.com/papercomputeco/memories/pkg/embeddings/hash"
	"github.com/papercomputeco/memories/pkg/storage"
)

type entry struct {
	record    storage.Record
	embedding []float32
	seq       uint64
}

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex guarding entries and seq
	mu sync.RWMutex

	// entries maps record ids to their stored entry
	entries map[string]*entry

	// seq orders entries by insertion so equal distances rank stably
	seq uint64

	embedder embeddings.Embedder
}

// NewDriver creates a new in-memory driver. A nil embedder falls back to the
// offline hashing embedder.
func NewDriver(embedder embeddings.Embedder) *Driver {
	if embedder == nil {
		embedder = hash.NewEmbedder(0)
	}

	return &Driver{
		entries:  make(map[string]*entry),
		embedder: embedder,
	}
}

// Store persists a record, replacing any record with the same id.
func (d *Driver) Store(ctx context.Context, id string, content string, metadata storage.Metadata) error {
	if id == "" {
		return errors.New("cannot store record without id")
	}

	vec, err := d.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	d.entries[id] = &entry{
		record: storage.Record{
			ID:       id,
			Content:  content,
			Metadata: metadata.Clone(),
		},
		embedding: vec,
		seq:       d.seq,
	}

	return nil
}

// Get retrieves a record by id.
func (d *Driver) Get(_ context.Context, id string) (*storage.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return copyRecord(e.record), nil
}

// Search ranks every record matching filter by cosine distance to query.
func (d *Driver) Search(ctx context.Context, query string, limit int, filter storage.Filter) ([]storage.Match, error) {
	if limit <= 0 {
		return []storage.Match{}, nil
	}

	vec, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	type scored struct {
		match storage.Match
		seq   uint64
	}

	d.mu.RLock()
	candidates := make([]scored, 0, len(d.entries))
	for _, e := range d.entries {
		if !filter.Matches(e.record.Metadata) {
			continue
		}
		candidates = append(candidates, scored{
			match: storage.Match{
				Record:   *copyRecord(e.record),
				Distance: storage.CosineDistance(vec, e.embedding),
			},
			seq: e.seq,
		})
	}
	d.mu.RUnlock()

	slices.SortFunc(candidates, func(a, b scored) int {
		switch {
		case a.match.Distance < b.match.Distance:
			return -1
		case a.match.Distance > b.match.Distance:
			return 1
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	matches := make([]storage.Match, len(candidates))
	for i, c := range candidates {
		matches[i] = c.match
	}

	return matches, nil
}

// UpdateMetadata merges partial into the stored metadata.
func (d *Driver) UpdateMetadata(_ context.Context, id string, partial storage.Metadata) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[id]
	if !ok {
		return storage.ErrNotFound
	}

	e.record.Metadata = e.record.Metadata.Merge(partial)
	return nil
}

// Delete removes a record.
func (d *Driver) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.entries, id)
	return nil
}

// Count returns the number of stored records.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.entries), nil
}

// Heartbeat always succeeds.
func (d *Driver) Heartbeat(_ context.Context) bool {
	return true
}

// Close releases the embedder.
func (d *Driver) Close() error {
	return d.embedder.Close()
}

func copyRecord(r storage.Record) *storage.Record {
	return &storage.Record{
		ID:       r.ID,
		Content:  r.Content,
		Metadata: r.Metadata.Clone(),
	}
}

var _ storage.Driver = (*Driver)(nil)
