// Package storage defines the contract every memory backend satisfies.
//
// The memory service never talks to a vector index directly. It persists,
// fetches, searches and patches flat records through a [Driver], and any
// backend (a remote Chroma or Qdrant server, a local SQLite file, Postgres,
// an embedded chromem database, or a map in memory) can sit behind it.
package storage

import "context"

// Driver is the storage port consumed by the memory service.
//
// Implementations must establish their connection on first use rather than in
// their constructor, so commands that never touch storage never dial it.
type Driver interface {
	// Store persists a record. The backend generates and stores whatever
	// embedding it needs from content.
	Store(ctx context.Context, id string, content string, metadata Metadata) error

	// Get fetches a record by id. Returns ErrNotFound when it does not exist.
	Get(ctx context.Context, id string) (*Record, error)

	// Search returns up to limit records matching every key of filter,
	// ordered from most to least similar to query.
	Search(ctx context.Context, query string, limit int, filter Filter) ([]Match, error)

	// UpdateMetadata merges partial into the record's metadata. Keys not
	// mentioned in partial are left untouched. Returns ErrNotFound when the
	// record does not exist.
	UpdateMetadata(ctx context.Context, id string, partial Metadata) error

	// Delete permanently removes a record. Deleting a missing record is not
	// an error.
	Delete(ctx context.Context, id string) error

	// Count returns the total number of records, soft-deleted ones included.
	Count(ctx context.Context) (int, error)

	// Heartbeat reports whether the backend is reachable.
	Heartbeat(ctx context.Context) bool

	// Close releases any resources held by the driver.
	Close() error
}

// Record is a stored memory as the backend sees it: an id, the raw content
// and a flat metadata map.
type Record struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Match is a search hit.
type Match struct {
	Record

	// Distance is the backend-reported distance from the query (lower is
	// closer).
	Distance float64
}
