// Package chromem provides an embedded storage driver on chromem-go. It needs
// no server: records live in process and are optionally persisted to a
// directory.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/papercomputeco/memories/pkg/embeddings"
	"github.com/papercomputeco/memories/pkg/storage"
)

// DefaultCollectionName is the collection used when none is configured.
const DefaultCollectionName = "memories"

// typedKey holds the JSON encoded metadata. chromem metadata is string only,
// so the flat string copy serves filters and this key keeps the types.
const typedKey = "_metadata"

// Driver implements storage.Driver using chromem-go.
type Driver struct {
	path       string
	compress   bool
	collection string
	embedder   embeddings.Embedder
	logger     *slog.Logger

	// mu guards col, opened on first use, and serializes read-modify-write
	// metadata updates
	mu  sync.Mutex
	col *chromem.Collection
}

// Config holds configuration for the chromem driver.
type Config struct {
	// Path is the directory the database persists to. Empty keeps
	// everything in memory.
	Path string

	// Compress gzips persisted documents.
	Compress bool

	// CollectionName is the name of the collection to use.
	CollectionName string

	// Embedder turns content and queries into vectors. Required.
	Embedder embeddings.Embedder
}

// NewDriver creates a new chromem driver. The database is opened on first use.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	return &Driver{
		path:       c.Path,
		compress:   c.Compress,
		collection: collection,
		embedder:   c.Embedder,
		logger:     logger.With("driver", "chromem"),
	}, nil
}

// collectionLocked returns the collection, opening the database on first
// use. Callers hold d.mu.
func (d *Driver) collectionLocked() (*chromem.Collection, error) {
	if d.col != nil {
		return d.col, nil
	}

	var (
		db  *chromem.DB
		err error
	)
	if d.path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(d.path, d.compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem database: %w", storage.ErrConnection, err)
		}
	}

	col, err := db.GetOrCreateCollection(d.collection, nil, d.embedder.Embed)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	d.logger.Debug("chromem driver initialized",
		"path", d.path,
		"collection", d.collection,
		"documents", col.Count(),
	)

	d.col = col
	return col, nil
}

func (d *Driver) open() (*chromem.Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collectionLocked()
}

// Store embeds content and adds the document, replacing any with the same id.
func (d *Driver) Store(ctx context.Context, id string, content string, metadata storage.Metadata) error {
	col, err := d.open()
	if err != nil {
		return err
	}

	embedding, err := d.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}

	flat, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	err = col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  flat,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	d.logger.Debug("stored document in chromem", "id", id)
	return nil
}

// Get retrieves a document by id.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Record, error) {
	col, err := d.open()
	if err != nil {
		return nil, err
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		// chromem reports unknown ids as plain errors
		return nil, storage.ErrNotFound
	}

	metadata, err := decodeMetadata(doc.Metadata)
	if err != nil {
		return nil, err
	}

	return &storage.Record{ID: doc.ID, Content: doc.Content, Metadata: metadata}, nil
}

// Search ranks documents matching filter by similarity to the embedded query.
func (d *Driver) Search(ctx context.Context, query string, limit int, filter storage.Filter) ([]storage.Match, error) {
	if limit <= 0 {
		return []storage.Match{}, nil
	}

	col, err := d.open()
	if err != nil {
		return nil, err
	}

	// chromem-go requires 0 < nResults <= collection size
	nResults := min(limit, col.Count())
	if nResults == 0 {
		return []storage.Match{}, nil
	}

	embedding, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	var where map[string]string
	if len(filter) > 0 {
		where = make(map[string]string, len(filter))
		for k, v := range filter {
			where[k] = storage.Stringify(v)
		}
	}

	results, err := col.QueryEmbedding(ctx, embedding, nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]storage.Match, 0, len(results))
	for _, r := range results {
		metadata, err := decodeMetadata(r.Metadata)
		if err != nil {
			return nil, err
		}

		matches = append(matches, storage.Match{
			Record: storage.Record{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: metadata,
			},
			Distance: 1 - float64(r.Similarity),
		})
	}

	d.logger.Debug("queried chromem", "results", len(matches))
	return matches, nil
}

// UpdateMetadata merges partial into a document's metadata, keeping its
// content and embedding.
func (d *Driver) UpdateMetadata(ctx context.Context, id string, partial storage.Metadata) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	col, err := d.collectionLocked()
	if err != nil {
		return err
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return storage.ErrNotFound
	}

	current, err := decodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	flat, err := encodeMetadata(current.Merge(partial))
	if err != nil {
		return err
	}
	doc.Metadata = flat

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	return nil
}

// Delete removes a document. Unknown ids are ignored.
func (d *Driver) Delete(ctx context.Context, id string) error {
	col, err := d.open()
	if err != nil {
		return err
	}

	if _, err := col.GetByID(ctx, id); err != nil {
		return nil
	}

	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return nil
}

// Count returns the number of documents in the collection.
func (d *Driver) Count(_ context.Context) (int, error) {
	col, err := d.open()
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Heartbeat reports whether the database could be opened.
func (d *Driver) Heartbeat(_ context.Context) bool {
	_, err := d.open()
	return err == nil
}

// Close releases the embedder. chromem persists on every write, so there is
// nothing to flush.
func (d *Driver) Close() error {
	return d.embedder.Close()
}

func encodeMetadata(metadata storage.Metadata) (map[string]string, error) {
	typed, err := json.Marshal(metadata.Clone())
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	flat := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		flat[k] = storage.Stringify(v)
	}
	flat[typedKey] = string(typed)

	return flat, nil
}

func decodeMetadata(flat map[string]string) (storage.Metadata, error) {
	metadata := storage.Metadata{}

	typed, ok := flat[typedKey]
	if !ok {
		for k, v := range flat {
			metadata[k] = v
		}
		return metadata, nil
	}

	if err := json.Unmarshal([]byte(typed), &metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return metadata, nil
}

var _ storage.Driver = (*Driver)(nil)
