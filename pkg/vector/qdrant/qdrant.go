// Package qdrant provides a Qdrant-backed vector driver.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	qd "github.com/qdrant/go-client/qdrant"

	"github.com/nickyai/memex/pkg/vector"
)

const defaultCollection = "memex_facts"

// QdrantDriver implements vector.Driver against a Qdrant instance.
type QdrantDriver struct {
	client     *qd.Client
	collection string
	logger     *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant server hostname.
	Host string

	// Port is the Qdrant gRPC port. Defaults to 6334.
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional for local instances.
	APIKey string

	// UseTLS enables TLS for the connection.
	UseTLS bool

	// Collection is the collection name. Defaults to "memex_facts".
	Collection string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewQdrantDriver creates a new Qdrant vector driver and ensures the
// collection exists with a cosine distance configuration.
func NewQdrantDriver(ctx context.Context, c Config, logger *slog.Logger) (*QdrantDriver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = defaultCollection
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("checking collection %s: %w", c.Collection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qd.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qd.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %s: %w", c.Collection, err)
		}
	}

	logger.Info("qdrant vector driver initialized",
		"host", c.Host,
		"collection", c.Collection,
		"dimensions", c.Dimensions,
	)

	return &QdrantDriver{
		client:     client,
		collection: c.Collection,
		logger:     logger,
	}, nil
}

// Add stores documents with their embeddings.
// If a document with the same ID already exists, it is updated.
func (d *QdrantDriver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qd.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qd.PointStruct{
			Id:      qd.NewID(doc.ID),
			Vectors: qd.NewVectors(doc.Embedding...),
			Payload: qd.NewValueMap(map[string]any{
				"profile_id": doc.ProfileID,
			}),
		})
	}

	_, err := d.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qd.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))

	return nil
}

// Query finds the topK most similar documents within the profile.
func (d *QdrantDriver) Query(ctx context.Context, profileID string, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	req := &qd.QueryPoints{
		CollectionName: d.collection,
		Query:          qd.NewQuery(embedding...),
		Limit:          qd.PtrOf(uint64(topK)),
		WithPayload:    qd.NewWithPayload(true),
	}
	if profileID != "" {
		req.Filter = &qd.Filter{
			Must: []*qd.Condition{
				qd.NewMatch("profile_id", profileID),
			},
		}
	}

	points, err := d.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, point := range points {
		// Cosine similarity can be negative for opposing vectors. Clamp to
		// keep the reported score inside the driver contract.
		score := point.GetScore()
		if score < 0 {
			score = 0
		}

		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:        point.GetId().GetUuid(),
				ProfileID: payloadProfile(point.GetPayload()),
			},
			Score: score,
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *QdrantDriver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qd.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qd.NewID(id))
	}

	points, err := d.client.Get(ctx, &qd.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs,
		WithPayload:    qd.NewWithPayload(true),
		WithVectors:    qd.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, point := range points {
		docs = append(docs, vector.Document{
			ID:        point.GetId().GetUuid(),
			ProfileID: payloadProfile(point.GetPayload()),
			Embedding: point.GetVectors().GetVector().GetData(),
		})
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *QdrantDriver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qd.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qd.NewID(id))
	}

	_, err := d.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: d.collection,
		Wait:           qd.PtrOf(true),
		Points:         qd.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}

	d.logger.Debug("deleted documents from qdrant", "count", len(ids))

	return nil
}

// Close releases resources held by the driver.
func (d *QdrantDriver) Close() error {
	return d.client.Close()
}

func payloadProfile(payload map[string]*qd.Value) string {
	if payload == nil {
		return ""
	}
	return payload["profile_id"].GetStringValue()
}
