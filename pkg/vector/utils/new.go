// Package vectorutils provides helpers to construct vector drivers.
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nickyai/memex/pkg/vector"
	"github.com/nickyai/memex/pkg/vector/qdrant"
	"github.com/nickyai/memex/pkg/vector/sqlitevec"
)

// NewVectorDriverOpts configures NewVectorDriver.
type NewVectorDriverOpts struct {
	// Provider selects the backend: "sqlite" or "qdrant".
	Provider string

	// SQLitePath is the database path for the sqlite provider.
	SQLitePath string

	// QdrantHost, QdrantPort, QdrantAPIKey and QdrantUseTLS configure the
	// qdrant provider.
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantUseTLS bool

	// Collection is the qdrant collection name.
	Collection string

	// Dimensions is the embedding width for either provider.
	Dimensions uint
}

// NewVectorDriver constructs a vector driver for the configured provider.
func NewVectorDriver(ctx context.Context, o NewVectorDriverOpts, logger *slog.Logger) (vector.Driver, error) {
	switch o.Provider {
	case "sqlite":
		return sqlitevec.NewSQLiteVecDriver(sqlitevec.Config{
			DBPath:     o.SQLitePath,
			Dimensions: o.Dimensions,
		}, logger)
	case "qdrant":
		return qdrant.NewQdrantDriver(ctx, qdrant.Config{
			Host:       o.QdrantHost,
			Port:       o.QdrantPort,
			APIKey:     o.QdrantAPIKey,
			UseTLS:     o.QdrantUseTLS,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown vector provider: %q", o.Provider)
	}
}
