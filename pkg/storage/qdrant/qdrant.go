// Package qdrant provides a storage driver backed by a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/memories/pkg/embeddings"
	"github.com/papercomputeco/memories/pkg/storage"
)

const (
	// DefaultCollectionName is the collection used when none is configured.
	DefaultCollectionName = "memories"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	// contentKey holds the memory content in the point payload.
	contentKey = "_content"
)

// Driver implements storage.Driver using Qdrant.
type Driver struct {
	host       string
	port       int
	collection string
	dimensions uint64
	embedder   embeddings.Embedder
	logger     *slog.Logger

	// mu guards client, dialed and bootstrapped on first use
	mu     sync.Mutex
	client *qdrant.Client
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Target is the Qdrant gRPC address, "host:port" or "http://host:port".
	// The port defaults to DefaultPort.
	Target string

	// CollectionName is the name of the collection to use.
	CollectionName string

	// Dimensions is the vector size the collection is created with. It
	// must match what Embedder produces.
	Dimensions uint

	// Embedder turns content and queries into vectors. Required.
	Embedder embeddings.Embedder
}

// NewDriver creates a new Qdrant driver without dialing the server.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Target == "" {
		return nil, fmt.Errorf("qdrant target is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	host, port, err := ParseTarget(c.Target)
	if err != nil {
		return nil, err
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	return &Driver{
		host:       host,
		port:       port,
		collection: collection,
		dimensions: uint64(c.Dimensions),
		embedder:   c.Embedder,
		logger:     logger.With("driver", "qdrant"),
	}, nil
}

// ParseTarget splits a Qdrant target into host and gRPC port.
func ParseTarget(target string) (string, int, error) {
	hostport := target
	if i := strings.Index(hostport, "://"); i >= 0 {
		hostport = hostport[i+3:]
	}
	hostport = strings.TrimRight(hostport, "/")

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// no port given
		return hostport, DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid qdrant port %q", portStr)
	}

	return host, port, nil
}

// connect returns the client, creating it and the collection on first use.
func (d *Driver) connect(ctx context.Context) (*qdrant.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.client != nil {
		return d.client, nil
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: d.host,
		Port: d.port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %w", storage.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, d.collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection: %w", storage.ErrConnection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: d.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     d.dimensions,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %q: %w", d.collection, err)
		}
		d.logger.Debug("created qdrant collection", "collection", d.collection, "dimensions", d.dimensions)
	}

	d.client = client
	return client, nil
}

// Store embeds content and upserts the point.
func (d *Driver) Store(ctx context.Context, id string, content string, metadata storage.Metadata) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("qdrant point ids must be UUIDs: %q", id)
	}

	client, err := d.connect(ctx)
	if err != nil {
		return err
	}

	embedding, err := d.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}

	payloadMap := metadata.Clone()
	payloadMap[contentKey] = content
	payload, err := qdrant.TryValueMap(payloadMap)
	if err != nil {
		return fmt.Errorf("converting metadata: %w", err)
	}

	_, err = client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectors(embedding...),
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upserting point %s: %w", id, err)
	}

	d.logger.Debug("stored point in qdrant", "id", id)
	return nil
}

// Get retrieves a point by id.
func (d *Driver) Get(ctx context.Context, id string) (*storage.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}

	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	points, err := client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting point %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}

	rec := fromPayload(points[0].GetId(), points[0].GetPayload())
	return &rec, nil
}

// Search queries the collection for the nearest points matching filter.
func (d *Driver) Search(ctx context.Context, query string, limit int, filter storage.Filter) ([]storage.Match, error) {
	if limit <= 0 {
		return []storage.Match{}, nil
	}

	client, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	embedding, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	points, err := client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	matches := make([]storage.Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, storage.Match{
			Record: fromPayload(p.GetId(), p.GetPayload()),
			// cosine score is a similarity; report it as a distance
			Distance: 1 - float64(p.GetScore()),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(matches))
	return matches, nil
}

// UpdateMetadata merges partial into a point's payload.
func (d *Driver) UpdateMetadata(ctx context.Context, id string, partial storage.Metadata) error {
	// SetPayload on a missing point is not an error in Qdrant.
	if _, err := d.Get(ctx, id); err != nil {
		return err
	}

	client, err := d.connect(ctx)
	if err != nil {
		return err
	}

	payload, err := qdrant.TryValueMap(partial)
	if err != nil {
		return fmt.Errorf("converting metadata: %w", err)
	}

	_, err = client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Payload:        payload,
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewID(id)),
	})
	if err != nil {
		return fmt.Errorf("setting payload on point %s: %w", id, err)
	}

	return nil
}

// Delete removes a point. Unknown ids are ignored.
func (d *Driver) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}

	client, err := d.connect(ctx)
	if err != nil {
		return err
	}

	_, err = client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrant.NewID(id)),
	})
	if err != nil {
		return fmt.Errorf("deleting point %s: %w", id, err)
	}

	return nil
}

// Count returns the exact number of points in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	client, err := d.connect(ctx)
	if err != nil {
		return 0, err
	}

	n, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}

	return int(n), nil
}

// Heartbeat reports whether Qdrant answers its health check.
func (d *Driver) Heartbeat(ctx context.Context) bool {
	client, err := d.connect(ctx)
	if err != nil {
		d.logger.Debug("qdrant heartbeat failed", "error", err)
		return false
	}

	if _, err := client.HealthCheck(ctx); err != nil {
		d.logger.Debug("qdrant heartbeat failed", "error", err)
		return false
	}
	return true
}

// Close closes the gRPC client and the embedder.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var clientErr error
	if d.client != nil {
		clientErr = d.client.Close()
		d.client = nil
	}

	return errors.Join(clientErr, d.embedder.Close())
}

// buildFilter turns a flat filter into a conjunction of match conditions.
func buildFilter(filter storage.Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}

	must := make([]*qdrant.Condition, 0, len(filter))
	for _, k := range filter.Keys() {
		switch v := filter[k].(type) {
		case bool:
			must = append(must, qdrant.NewMatchBool(k, v))
		case int:
			must = append(must, qdrant.NewMatchInt(k, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(k, v))
		default:
			must = append(must, qdrant.NewMatchKeyword(k, storage.Stringify(v)))
		}
	}

	return &qdrant.Filter{Must: must}
}

// fromPayload rebuilds a record from a point id and payload.
func fromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) storage.Record {
	rec := storage.Record{
		ID:       id.GetUuid(),
		Metadata: storage.Metadata{},
	}

	for k, v := range payload {
		if k == contentKey {
			rec.Content = v.GetStringValue()
			continue
		}

		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			rec.Metadata[k] = kind.StringValue
		case *qdrant.Value_BoolValue:
			rec.Metadata[k] = kind.BoolValue
		case *qdrant.Value_IntegerValue:
			rec.Metadata[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			rec.Metadata[k] = kind.DoubleValue
		}
	}

	return rec
}

var _ storage.Driver = (*Driver)(nil)
