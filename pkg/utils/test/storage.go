package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/memories/pkg/storage"
	"github.com/papercomputeco/memories/pkg/storage/inmemory"
)

// ErrMockStorage is returned by MockStorageDriver operations set to fail.
var ErrMockStorage = errors.New("mock storage failure")

// MockStorageDriver wraps an in-memory driver, records calls and can be
// told to fail or to answer searches with fixed matches.
type MockStorageDriver struct {
	*inmemory.Driver

	mu sync.Mutex

	// Calls records the name of every operation invoked, in order.
	Calls []string

	// LastFilter and LastLimit capture the most recent Search arguments.
	LastFilter storage.Filter
	LastLimit  int

	// SearchResults, when non-nil, is returned by Search instead of
	// querying the wrapped driver.
	SearchResults []storage.Match

	FailStore     bool
	FailGet       bool
	FailSearch    bool
	FailUpdate    bool
	FailDelete    bool
	FailCount     bool
	HeartbeatDown bool
}

// NewMockStorageDriver creates a mock backed by an empty in-memory driver.
func NewMockStorageDriver() *MockStorageDriver {
	return &MockStorageDriver{
		Driver: inmemory.NewDriver(nil),
	}
}

func (m *MockStorageDriver) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// CallCount returns how often call was invoked.
func (m *MockStorageDriver) CallCount(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *MockStorageDriver) Store(ctx context.Context, id string, content string, metadata storage.Metadata) error {
	m.record("Store")
	if m.FailStore {
		return ErrMockStorage
	}
	return m.Driver.Store(ctx, id, content, metadata)
}

func (m *MockStorageDriver) Get(ctx context.Context, id string) (*storage.Record, error) {
	m.record("Get")
	if m.FailGet {
		return nil, ErrMockStorage
	}
	return m.Driver.Get(ctx, id)
}

func (m *MockStorageDriver) Search(ctx context.Context, query string, limit int, filter storage.Filter) ([]storage.Match, error) {
	m.record("Search")

	m.mu.Lock()
	m.LastFilter = filter
	m.LastLimit = limit
	m.mu.Unlock()

	if m.FailSearch {
		return nil, ErrMockStorage
	}
	if m.SearchResults != nil {
		return m.SearchResults, nil
	}
	return m.Driver.Search(ctx, query, limit, filter)
}

func (m *MockStorageDriver) UpdateMetadata(ctx context.Context, id string, partial storage.Metadata) error {
	m.record("UpdateMetadata")
	if m.FailUpdate {
		return ErrMockStorage
	}
	return m.Driver.UpdateMetadata(ctx, id, partial)
}

func (m *MockStorageDriver) Delete(ctx context.Context, id string) error {
	m.record("Delete")
	if m.FailDelete {
		return ErrMockStorage
	}
	return m.Driver.Delete(ctx, id)
}

func (m *MockStorageDriver) Count(ctx context.Context) (int, error) {
	m.record("Count")
	if m.FailCount {
		return 0, ErrMockStorage
	}
	return m.Driver.Count(ctx)
}

func (m *MockStorageDriver) Heartbeat(ctx context.Context) bool {
	m.record("Heartbeat")
	if m.HeartbeatDown {
		return false
	}
	return m.Driver.Heartbeat(ctx)
}

var _ storage.Driver = (*MockStorageDriver)(nil)
