// Package storageutils constructs storage drivers from provider config.
package storageutils

import (
	"context"
	"fmt"

	"github.com/nickyai/memex/pkg/storage"
	"github.com/nickyai/memex/pkg/storage/inmemory"
	"github.com/nickyai/memex/pkg/storage/libsql"
	"github.com/nickyai/memex/pkg/storage/postgres"
	"github.com/nickyai/memex/pkg/storage/sqlite"
)

type NewStorageDriverOpts struct {
	Provider    string
	SQLitePath  string
	LibSQLURL   string
	PostgresDSN string
}

func NewStorageDriver(ctx context.Context, o *NewStorageDriverOpts) (storage.Driver, error) {
	switch o.Provider {
	case "memory":
		return inmemory.NewDriver(), nil
	case "sqlite":
		return sqlite.NewStore(o.SQLitePath)
	case "libsql":
		return libsql.NewStore(o.LibSQLURL)
	case "postgres":
		return postgres.NewStore(ctx, o.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.Provider)
	}
}
