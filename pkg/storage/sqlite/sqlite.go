// Package sqlite provides a storage driver backed by a single SQLite file,
// ranking records with the sqlite-vec extension.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/memories/pkg/embeddings"
	"github.com/papercomputeco/memories/pkg/storage"
)

// DefaultCollectionName is the collection used when none is configured.
const DefaultCollectionName = "memories"

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	embedding  BLOB NOT NULL,
	PRIMARY KEY (collection, id)
)`

// Driver implements storage.Driver using SQLite with sqlite-vec.
type Driver struct {
	path       string
	collection string
	embedder   embeddings.Embedder
	logger     *slog.Logger

	// mu guards db, opened and migrated on first use
	mu sync.Mutex
	db *sql.DB
}

// Config holds configuration for the SQLite driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// CollectionName partitions records within the file.
	CollectionName string

	// Embedder turns content and queries into vectors. Required.
	Embedder embeddings.Embedder
}

// NewDriver creates a new SQLite driver. The database file is not opened
// until the first operation.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
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
		path:       c.DBPath,
		collection: collection,
		embedder:   c.Embedder,
		logger:     logger.With("driver", "sqlite"),
	}, nil
}

// open returns the database handle, opening it and creating the schema on
// first use.
func (d *Driver) open(ctx context.Context) (*sql.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return d.db, nil
	}

	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", d.path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", storage.ErrConnection, err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers on file databases.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %w", storage.ErrConnection, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating memories table: %w", storage.ErrConnection, err)
	}

	d.logger.Debug("sqlite driver initialized",
		"db_path", d.path,
		"collection", d.collection,
		"vec_version", vecVersion,
	)

	d.db = db
	return db, nil
}

// Store embeds content and inserts the record, replacing any previous
// record with the same id.
func (d *Driver) Store(ctx context.Context, id string, content string, metadata storage.Metadata) error {
	db, err := d.open(ctx)
	if err != nil {
		return err
	}

	embedding, err := d.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serializing embedding: %w", err)
	}

	metaJSON, err := json.Marshal(metadata.Clone())
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO memories (collection, id, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
	`, d.collection, id, content, string(metaJSON), blob)
	if err != nil {
		return fmt.Errorf("inserting record %s: %w", id, err)
	}

	d.logger.Debug("stored record in sqlite", "id", id)
	return nil
}

// Get retrieves a record by id.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Record, error) {
	db, err := d.open(ctx)
	if err != nil {
		return nil, err
	}

	var content, metaJSON string
	err = db.QueryRowContext(ctx,
		`SELECT content, metadata FROM memories WHERE collection = ? AND id = ?`,
		d.collection, id,
	).Scan(&content, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying record %s: %w", id, err)
	}

	metadata, err := decodeMetadata(metaJSON)
	if err != nil {
		return nil, err
	}

	return &storage.Record{ID: id, Content: content, Metadata: metadata}, nil
}

// Search ranks the collection by cosine distance to the embedded query.
func (d *Driver) Search(ctx context.Context, query string, limit int, filter storage.Filter) ([]storage.Match, error) {
	if limit <= 0 {
		return []storage.Match{}, nil
	}

	db, err := d.open(ctx)
	if err != nil {
		return nil, err
	}

	embedding, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serializing query embedding: %w", err)
	}

	var where strings.Builder
	args := []any{blob, d.collection}
	where.WriteString("collection = ?")

	for _, k := range filter.Keys() {
		where.WriteString(" AND json_extract(metadata, ?) = ?")
		args = append(args, jsonPath(k), sqlValue(filter[k]))
	}
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, `
		SELECT id, content, metadata, vec_distance_cosine(embedding, ?) AS distance
		FROM memories
		WHERE `+where.String()+`
		ORDER BY distance, rowid
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	matches := []storage.Match{}
	for rows.Next() {
		var (
			m        storage.Match
			metaJSON string
		)
		if err := rows.Scan(&m.ID, &m.Content, &metaJSON, &m.Distance); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		if m.Metadata, err = decodeMetadata(metaJSON); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	d.logger.Debug("queried sqlite", "results", len(matches))
	return matches, nil
}

// UpdateMetadata merges partial into a record's metadata with json_patch.
func (d *Driver) UpdateMetadata(ctx context.Context, id string, partial storage.Metadata) error {
	db, err := d.open(ctx)
	if err != nil {
		return err
	}

	patch, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE memories SET metadata = json_patch(metadata, ?) WHERE collection = ? AND id = ?`,
		string(patch), d.collection, id,
	)
	if err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Delete removes a record. Unknown ids are ignored.
func (d *Driver) Delete(ctx context.Context, id string) error {
	db, err := d.open(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM memories WHERE collection = ? AND id = ?`, d.collection, id,
	); err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}

	d.logger.Debug("deleted record from sqlite", "id", id)
	return nil
}

// Count returns the number of records in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	db, err := d.open(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE collection = ?`, d.collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}

	return n, nil
}

// Heartbeat reports whether the database can be opened and pinged.
func (d *Driver) Heartbeat(ctx context.Context) bool {
	db, err := d.open(ctx)
	if err != nil {
		d.logger.Debug("sqlite heartbeat failed", "error", err)
		return false
	}
	return db.PingContext(ctx) == nil
}

// Close closes the database and the embedder.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var dbErr error
	if d.db != nil {
		dbErr = d.db.Close()
		d.db = nil
	}

	return errors.Join(dbErr, d.embedder.Close())
}

func decodeMetadata(raw string) (storage.Metadata, error) {
	metadata := storage.Metadata{}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return metadata, nil
}

func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

// sqlValue converts a filter value into what json_extract yields for it:
// JSON booleans come back from SQLite as 1 and 0.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

var _ storage.Driver = (*Driver)(nil)
