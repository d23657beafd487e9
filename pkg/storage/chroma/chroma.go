// Package chroma provides a storage driver backed by a Chroma server's REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/memories/pkg/embeddings"
	"github.com/papercomputeco/memories/pkg/storage"
)

const (
	// DefaultCollectionName is the default collection name for storing memories.
	DefaultCollectionName = "memories"

	// DefaultMaxRetries is how many times the first connection is attempted.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial delay between connection attempts.
	DefaultRetryDelay = 250 * time.Millisecond

	// DefaultMaxRetryDelay caps the exponential backoff between attempts.
	DefaultMaxRetryDelay = 2 * time.Second

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
	heartbeatPath   = "/api/v2/heartbeat"
)

// errStatus marks a non-2xx response from Chroma.
var errStatus = errors.New("unexpected status")

// Driver implements storage.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	embedder       embeddings.Embedder
	httpClient     *http.Client
	logger         *slog.Logger

	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration

	// mu guards collectionID, resolved on first use
	mu           sync.Mutex
	collectionID string
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Embedder turns content and queries into vectors. Chroma's REST API
	// does not embed server side. Required.
	Embedder embeddings.Embedder

	// MaxRetries bounds the attempts made to resolve the collection.
	MaxRetries int

	// RetryDelay is the first backoff delay, doubled after each failure.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff delay.
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma driver. It does not contact the server;
// the collection is resolved on first use.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	d := &Driver{
		baseURL:        strings.TrimRight(c.URL, "/"),
		collectionName: collectionName,
		embedder:       c.Embedder,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:        logger.With("driver", "chroma"),
		maxRetries:    c.MaxRetries,
		retryDelay:    c.RetryDelay,
		maxRetryDelay: c.MaxRetryDelay,
	}

	if d.maxRetries <= 0 {
		d.maxRetries = DefaultMaxRetries
	}
	if d.retryDelay <= 0 {
		d.retryDelay = DefaultRetryDelay
	}
	if d.maxRetryDelay <= 0 {
		d.maxRetryDelay = DefaultMaxRetryDelay
	}

	return d, nil
}

// collection returns the collection id, getting or creating the collection
// on first use and retrying with exponential backoff while Chroma starts.
func (d *Driver) collection(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.collectionID != "" {
		return d.collectionID, nil
	}

	delay := d.retryDelay
	var lastErr error

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		id, err := d.getOrCreateCollection(ctx)
		if err == nil {
			d.collectionID = id
			d.logger.Debug("connected to chroma",
				"url", d.baseURL,
				"collection", d.collectionName,
				"collection_id", id,
				"attempts", attempt,
			)
			return id, nil
		}
		lastErr = err

		if attempt == d.maxRetries {
			break
		}

		d.logger.Debug("chroma not ready, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", storage.ErrConnection, ctx.Err())
		case <-time.After(delay):
		}

		delay = min(delay*2, d.maxRetryDelay)
	}

	return "", fmt.Errorf("%w: resolving collection %q after %d attempts: %w",
		storage.ErrConnection, d.collectionName, d.maxRetries, lastErr)
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var collection chromaCollection

	err := d.do(ctx, http.MethodGet, collectionsPath+"/"+d.collectionName, nil, &collection)
	if err == nil {
		return collection.ID, nil
	}
	if !errors.Is(err, errStatus) {
		return "", err
	}

	err = d.do(ctx, http.MethodPost, collectionsPath, chromaCreateCollectionRequest{
		Name:        d.collectionName,
		GetOrCreate: true,
	}, &collection)
	if err != nil {
		return "", fmt.Errorf("creating collection: %w", err)
	}

	return collection.ID, nil
}

// Store embeds content and adds the record to the collection.
func (d *Driver) Store(ctx context.Context, id string, content string, metadata storage.Metadata) error {
	collectionID, err := d.collection(ctx)
	if err != nil {
		return err
	}

	embedding, err := d.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}

	err = d.do(ctx, http.MethodPost, d.recordsPath(collectionID, "add"), chromaAddRequest{
		IDs:        []string{id},
		Embeddings: [][]float32{embedding},
		Metadatas:  []map[string]any{metadata},
		Documents:  []string{content},
	}, nil)
	if err != nil {
		return fmt.Errorf("adding record: %w", err)
	}

	d.logger.Debug("added record to chroma", "id", id)
	return nil
}

// Get retrieves a record by id.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Record, error) {
	collectionID, err := d.collection(ctx)
	if err != nil {
		return nil, err
	}

	var getResp chromaGetResponse
	err = d.do(ctx, http.MethodPost, d.recordsPath(collectionID, "get"), chromaGetRequest{
		IDs:     []string{id},
		Include: []string{"documents", "metadatas"},
	}, &getResp)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	if len(getResp.IDs) == 0 {
		return nil, storage.ErrNotFound
	}

	rec := &storage.Record{
		ID:       getResp.IDs[0],
		Metadata: storage.Metadata{},
	}
	if len(getResp.Documents) > 0 && getResp.Documents[0] != nil {
		rec.Content = *getResp.Documents[0]
	}
	if len(getResp.Metadatas) > 0 && getResp.Metadatas[0] != nil {
		rec.Metadata = getResp.Metadatas[0]
	}

	return rec, nil
}

// Search embeds query and asks Chroma for the nearest records matching filter.
func (d *Driver) Search(ctx context.Context, query string, limit int, filter storage.Filter) ([]storage.Match, error) {
	if limit <= 0 {
		return []storage.Match{}, nil
	}

	collectionID, err := d.collection(ctx)
	if err != nil {
		return nil, err
	}

	embedding, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	var queryResp chromaQueryResponse
	err = d.do(ctx, http.MethodPost, d.recordsPath(collectionID, "query"), chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        limit,
		Where:           buildWhere(filter),
		Include:         []string{"documents", "metadatas", "distances"},
	}, &queryResp)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}

	// We only ever send one query embedding, so only the first group matters.
	if len(queryResp.IDs) == 0 {
		return []storage.Match{}, nil
	}

	ids := queryResp.IDs[0]
	matches := make([]storage.Match, 0, len(ids))
	for i, id := range ids {
		m := storage.Match{
			Record: storage.Record{
				ID:       id,
				Metadata: storage.Metadata{},
			},
		}

		if len(queryResp.Documents) > 0 && i < len(queryResp.Documents[0]) && queryResp.Documents[0][i] != nil {
			m.Content = *queryResp.Documents[0][i]
		}
		if len(queryResp.Metadatas) > 0 && i < len(queryResp.Metadatas[0]) && queryResp.Metadatas[0][i] != nil {
			m.Metadata = queryResp.Metadatas[0][i]
		}
		if len(queryResp.Distances) > 0 && i < len(queryResp.Distances[0]) {
			m.Distance = queryResp.Distances[0][i]
		}

		matches = append(matches, m)
	}

	d.logger.Debug("queried chroma", "results", len(matches))
	return matches, nil
}

// UpdateMetadata merges partial into a record's metadata.
func (d *Driver) UpdateMetadata(ctx context.Context, id string, partial storage.Metadata) error {
	// Chroma silently ignores updates to unknown ids.
	if _, err := d.Get(ctx, id); err != nil {
		return err
	}

	collectionID, err := d.collection(ctx)
	if err != nil {
		return err
	}

	err = d.do(ctx, http.MethodPost, d.recordsPath(collectionID, "update"), chromaUpdateRequest{
		IDs:       []string{id},
		Metadatas: []map[string]any{partial},
	}, nil)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	return nil
}

// Delete removes a record.
func (d *Driver) Delete(ctx context.Context, id string) error {
	collectionID, err := d.collection(ctx)
	if err != nil {
		return err
	}

	err = d.do(ctx, http.MethodPost, d.recordsPath(collectionID, "delete"), chromaDeleteRequest{
		IDs: []string{id},
	}, nil)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	d.logger.Debug("deleted record from chroma", "id", id)
	return nil
}

// Count returns the number of records in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	collectionID, err := d.collection(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := d.do(ctx, http.MethodGet, d.recordsPath(collectionID, "count"), nil, &n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}

	return n, nil
}

// Heartbeat reports whether the Chroma server answers its heartbeat endpoint.
func (d *Driver) Heartbeat(ctx context.Context) bool {
	if err := d.do(ctx, http.MethodGet, heartbeatPath, nil, nil); err != nil {
		d.logger.Debug("chroma heartbeat failed", "error", err)
		return false
	}
	return true
}

// Close releases the embedder.
func (d *Driver) Close() error {
	return d.embedder.Close()
}

func (d *Driver) recordsPath(collectionID, op string) string {
	return collectionsPath + "/" + collectionID + "/" + op
}

// do sends a JSON request to Chroma and decodes the JSON response into out
// when out is non-nil.
func (d *Driver) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending request: %w", storage.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w %d: %s", errStatus, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// buildWhere converts a flat filter into Chroma's where clause. A single key
// passes through as is; several keys are combined under "$and" because
// Chroma requires an explicit operator for compound filters.
func buildWhere(filter storage.Filter) map[string]any {
	switch len(filter) {
	case 0:
		return nil
	case 1:
		return map[string]any(filter)
	}

	clauses := make([]map[string]any, 0, len(filter))
	for _, k := range filter.Keys() {
		clauses = append(clauses, map[string]any{k: filter[k]})
	}

	return map[string]any{"$and": clauses}
}

var _ storage.Driver = (*Driver)(nil)
