package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nickyai/memex/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the MEMEX_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (MEMEX_API_LISTEN, MEMEX_STORAGE_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: MEMEX_API_LISTEN, MEMEX_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("MEMEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.libsql_url", d.Storage.LibSQLURL)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Vector
	v.SetDefault("vector.provider", d.Vector.Provider)
	v.SetDefault("vector.sqlite_path", d.Vector.SQLitePath)
	v.SetDefault("vector.qdrant_target", d.Vector.QdrantTarget)
	v.SetDefault("vector.qdrant_api_key", d.Vector.QdrantAPIKey)
	v.SetDefault("vector.collection", d.Vector.Collection)
	v.SetDefault("vector.dimensions", d.Vector.Dimensions)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)

	// Classifier
	v.SetDefault("classifier.provider", d.Classifier.Provider)
	v.SetDefault("classifier.target", d.Classifier.Target)
	v.SetDefault("classifier.model", d.Classifier.Model)

	// Stream
	v.SetDefault("stream.provider", d.Stream.Provider)
	v.SetDefault("stream.brokers", d.Stream.Brokers)
	v.SetDefault("stream.topic", d.Stream.Topic)

	// Retrieval
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.min_score", d.Retrieval.MinScore)
	v.SetDefault("retrieval.branch_timeout_ms", d.Retrieval.BranchTimeoutMS)
	v.SetDefault("retrieval.default_mode", d.Retrieval.DefaultMode)
	v.SetDefault("retrieval.default_heat", d.Retrieval.DefaultHeat)

	// Indexer
	v.SetDefault("indexer.workers", d.Indexer.Workers)
	v.SetDefault("indexer.queue_size", d.Indexer.QueueSize)

	// Log
	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.file", d.Log.File)
}
