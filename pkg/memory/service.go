// Package memory owns the business rules of the memory system: creating,
// searching, reading, reinforcing and soft-deleting memories on top of a
// storage.Driver, with confidence derived by the decay package.
package memory

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/memories/pkg/decay"
	"github.com/papercomputeco/memories/pkg/eventstream"
	"github.com/papercomputeco/memories/pkg/eventstream/nop"
	"github.com/papercomputeco/memories/pkg/storage"
	"github.com/papercomputeco/memories/pkg/utils"
)

const (
	// DefaultLimit is the search limit used when neither the request nor
	// the configuration sets one.
	DefaultLimit = 10

	// DefaultMinConfidence is the confidence floor used when neither the
	// request nor the configuration sets one.
	DefaultMinConfidence = 0.3

	lockStripes = 64
)

// Config holds the dependencies and settings of a Service.
type Config struct {
	// Driver is the storage backend. Required.
	Driver storage.Driver

	// Logger is required.
	Logger *slog.Logger

	// Publisher receives lifecycle events. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	HalfLifeHours float64
	DefaultLimit  int
	MinConfidence float64

	// Host and Collection describe the backend in status reports.
	Host       string
	Collection string

	// Clock and NewID are overridable for tests.
	Clock func() time.Time
	NewID func() string
}

// Service implements the memory operations. It is safe for concurrent use.
type Service struct {
	driver        storage.Driver
	publisher     eventstream.Publisher
	logger        *slog.Logger
	halfLifeHours float64
	defaultLimit  int
	minConfidence float64
	host          string
	collection    string
	now           func() time.Time
	newID         func() string

	// locks serialize state transitions on the same id within a process
	locks [lockStripes]sync.Mutex
}

// NewService validates c and builds a Service. It does not touch the backend.
func NewService(c Config) (*Service, error) {
	if c.Driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Service{
		driver:        c.Driver,
		publisher:     c.Publisher,
		logger:        c.Logger,
		halfLifeHours: c.HalfLifeHours,
		defaultLimit:  c.DefaultLimit,
		minConfidence: c.MinConfidence,
		host:          c.Host,
		collection:    c.Collection,
		now:           c.Clock,
		newID:         c.NewID,
	}

	if s.publisher == nil {
		s.publisher = nop.NewPublisher()
	}
	if s.halfLifeHours == 0 {
		s.halfLifeHours = decay.DefaultHalfLifeHours
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = DefaultLimit
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	return s, nil
}

// Create stores a new memory. Its confidence is 1.0 for every policy since
// its age is zero.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*MemoryResponse, error) {
	if req.DecayPolicy == "" {
		req.DecayPolicy = decay.Stable
	}
	if !req.DecayPolicy.Valid() {
		return nil, fmt.Errorf("%w: invalid decay policy %q", ErrInvalidRequest, req.DecayPolicy)
	}

	id := s.newID()
	createdAt := formatTime(s.now())

	if err := s.driver.Store(ctx, id, req.Content, newMetadata(req, createdAt)); err != nil {
		return nil, fmt.Errorf("storing memory: %w", err)
	}

	s.logger.Debug("created memory", "id", id, "decay_policy", req.DecayPolicy, "content", utils.Truncate(req.Content, 64))
	s.publish(ctx, eventstream.EventTypeMemoryCreated, id, req.Agent, req.Project, req.DecayPolicy)

	return &MemoryResponse{
		ID:               id,
		Content:          req.Content,
		Agent:            req.Agent,
		Personality:      req.Personality,
		Project:          req.Project,
		Type:             req.Type,
		Global:           req.Global,
		DecayPolicy:      req.DecayPolicy,
		Confidence:       1.0,
		CreatedAt:        createdAt,
		LastReinforcedAt: "",
	}, nil
}

// Search asks the backend for the closest live memories matching the
// request's tags and drops those whose confidence is below the floor.
// Backend order is preserved.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	minConfidence := s.minConfidence
	if req.MinConfidence != nil {
		minConfidence = *req.MinConfidence
	}

	matches, err := s.driver.Search(ctx, req.Query, limit, searchFilter(req))
	if err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}

	now := s.now()
	results := make([]SearchResultItem, 0, len(matches))
	for i := range matches {
		m := &matches[i]

		// the filter already excludes these; backends with lossy filters
		// must not leak them
		if m.Metadata.Bool(KeyDeleted) {
			continue
		}

		resp, err := toResponse(&m.Record, s.halfLifeHours, now)
		if err != nil {
			return nil, err
		}

		if float64(resp.Confidence) < minConfidence {
			continue
		}

		results = append(results, SearchResultItem{
			MemoryResponse: resp,
			Similarity:     m.Distance,
		})
	}

	s.logger.Debug("searched memories",
		"candidates", len(matches),
		"results", len(results),
		"min_confidence", minConfidence,
	)

	return &SearchResponse{Results: results, Count: len(results)}, nil
}

// Get returns a live memory.
func (s *Service) Get(ctx context.Context, id string) (*MemoryResponse, error) {
	rec, err := s.live(ctx, id)
	if err != nil {
		return nil, err
	}

	resp, err := toResponse(rec, s.halfLifeHours, s.now())
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reinforce resets the decay clock of a reinforceable memory.
func (s *Service) Reinforce(ctx context.Context, id string) (*ReinforceResponse, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.live(ctx, id)
	if err != nil {
		return nil, err
	}

	policy := decay.Policy(rec.Metadata.String(KeyDecayPolicy))
	switch policy {
	case decay.Reinforceable:
	case decay.Stable:
		return nil, &InvalidOperationError{ID: id, Reason: "Memory has stable decay policy, reinforcement has no effect"}
	case decay.Contextual:
		return nil, &InvalidOperationError{ID: id, Reason: "Memory has contextual decay policy, reinforcement is not supported"}
	default:
		return nil, &InvalidOperationError{ID: id, Reason: fmt.Sprintf("Memory has %s decay policy, cannot be reinforced", policy)}
	}

	reinforcedAt := formatTime(s.now())
	if err := s.driver.UpdateMetadata(ctx, id, storage.Metadata{KeyLastReinforcedAt: reinforcedAt}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("reinforcing memory: %w", err)
	}

	s.logger.Debug("reinforced memory", "id", id)
	s.publish(ctx, eventstream.EventTypeMemoryReinforced, id,
		rec.Metadata.String(KeyAgent), rec.Metadata.String(KeyProject), policy)

	return &ReinforceResponse{
		ID:               id,
		Confidence:       1.0,
		LastReinforcedAt: reinforcedAt,
	}, nil
}

// Delete soft-deletes a memory. Deleting twice is rejected rather than
// treated as a no-op.
func (s *Service) Delete(ctx context.Context, id string) (*DeleteResponse, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.Metadata.Bool(KeyDeleted) {
		return nil, &InvalidOperationError{ID: id, Reason: fmt.Sprintf("Memory '%s' is already deleted", id)}
	}

	if err := s.driver.UpdateMetadata(ctx, id, storage.Metadata{KeyDeleted: true}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("deleting memory: %w", err)
	}

	s.logger.Debug("deleted memory", "id", id)
	s.publish(ctx, eventstream.EventTypeMemoryDeleted, id,
		rec.Metadata.String(KeyAgent), rec.Metadata.String(KeyProject),
		decay.Policy(rec.Metadata.String(KeyDecayPolicy)))

	return &DeleteResponse{ID: id, Deleted: true}, nil
}

// Purge physically removes a memory that was already soft-deleted. It is
// backend housekeeping: live memories must be deleted first.
func (s *Service) Purge(ctx context.Context, id string) error {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	rec, err := s.record(ctx, id)
	if err != nil {
		return err
	}

	if !rec.Metadata.Bool(KeyDeleted) {
		return &InvalidOperationError{ID: id, Reason: fmt.Sprintf("Memory '%s' must be deleted before it can be purged", id)}
	}

	if err := s.driver.Delete(ctx, id); err != nil {
		return fmt.Errorf("purging memory: %w", err)
	}

	s.logger.Debug("purged memory", "id", id)
	return nil
}

// Status probes the backend. It never fails: any backend problem is
// reported as an unhealthy status with a zero count.
func (s *Service) Status(ctx context.Context) *StatusResponse {
	resp := &StatusResponse{
		Status:     StatusUnhealthy,
		Host:       s.host,
		Collection: s.collection,
	}

	if !s.driver.Heartbeat(ctx) {
		s.logger.Debug("storage heartbeat failed")
		return resp
	}

	count, err := s.driver.Count(ctx)
	if err != nil {
		s.logger.Debug("counting memories failed", "error", err)
		return resp
	}

	resp.Status = StatusHealthy
	resp.Count = count
	return resp
}

// record fetches a memory whether or not it was soft-deleted.
func (s *Service) record(ctx context.Context, id string) (*storage.Record, error) {
	rec, err := s.driver.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("getting memory: %w", err)
	}
	return rec, nil
}

// live fetches a memory and treats a soft-deleted one as absent.
func (s *Service) live(ctx context.Context, id string) (*storage.Record, error) {
	rec, err := s.record(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Metadata.Bool(KeyDeleted) {
		return nil, &NotFoundError{ID: id}
	}
	return rec, nil
}

func (s *Service) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

// publish emits a lifecycle event. A failed publish is logged and never
// fails the operation that triggered it.
func (s *Service) publish(ctx context.Context, eventType, id, agent, project string, policy decay.Policy) {
	event := eventstream.NewMemoryEvent(eventType, id, agent, project, string(policy), s.now())
	if err := s.publisher.PublishMemory(ctx, event); err != nil {
		s.logger.Warn("publishing memory event failed",
			"event_type", eventType,
			"memory_id", id,
			"error", err,
		)
	}
}

// searchFilter always excludes soft-deleted memories and adds a constraint
// for every tag the request sets.
func searchFilter(req SearchRequest) storage.Filter {
	filter := storage.Filter{KeyDeleted: false}

	for key, value := range map[string]string{
		KeyAgent:       req.Agent,
		KeyPersonality: req.Personality,
		KeyProject:     req.Project,
		KeyType:        req.Type,
	} {
		if value != "" {
			filter[key] = value
		}
	}

	if req.Global != nil {
		filter[KeyGlobal] = *req.Global
	}

	return filter
}
