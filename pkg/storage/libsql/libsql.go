// Package libsql implements the storage driver against a remote libsql
// (Turso) database. libsql speaks the SQLite dialect, so the store reuses the
// SQLite implementation over a libsql connection.
package libsql

import (
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/nickyai/memex/pkg/storage/sqlite"
)

// NewStore connects to the libsql database at url, e.g.
// "libsql://mydb-myorg.turso.io?authToken=...".
func NewStore(url string) (*sqlite.Store, error) {
	if url == "" {
		return nil, fmt.Errorf("libsql url is required")
	}

	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("opening libsql database: %w", err)
	}

	store, err := sqlite.NewStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
