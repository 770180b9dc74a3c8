// Package vector provides interfaces and implementations for fact embedding
// storage and nearest-neighbour search.
package vector

import "context"

// Document represents an indexed fact embedding with its scoping metadata.
type Document struct {
	// ID is the fact ID the embedding belongs to.
	ID string

	// ProfileID scopes the document to a persona profile; queries never
	// cross profiles.
	ProfileID string

	// Embedding is the vector representation of the fact content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is a similarity in [0,1] (higher = more similar). Drivers
	// convert their native distance metric.
	Score float32
}

// Driver handles storage and retrieval of fact embeddings.
type Driver interface {
	// Add stores documents with their embeddings. Adding an existing ID
	// replaces its embedding.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the embedding within
	// the profile.
	Query(ctx context.Context, profileID string, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
