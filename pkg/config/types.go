package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent memex configuration stored as config.toml
// in the .memex/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Client     ClientConfig     `toml:"client"`
	API        APIConfig        `toml:"api"`
	Storage    StorageConfig    `toml:"storage"`
	Vector     VectorConfig     `toml:"vector"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Classifier ClassifierConfig `toml:"classifier"`
	Stream     StreamConfig     `toml:"stream"`
	Retrieval  RetrievalConfig  `toml:"retrieval"`
	Indexer    IndexerConfig    `toml:"indexer"`
	Log        LogConfig        `toml:"log"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// API server (e.g. memex recall, memex facts, memex audit).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig holds fact store settings shared by the server and the
// direct-store commands (seed, reindex).
// SQLitePath empty means <dotdir>/memex.db, resolved when the store opens.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	LibSQLURL   string `toml:"libsql_url,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// VectorConfig holds vector index settings.
// SQLitePath empty means the index shares storage.sqlite_path.
type VectorConfig struct {
	Provider     string `toml:"provider,omitempty"`
	SQLitePath   string `toml:"sqlite_path,omitempty"`
	QdrantTarget string `toml:"qdrant_target,omitempty"`
	QdrantAPIKey string `toml:"qdrant_api_key,omitempty"`
	Collection   string `toml:"collection,omitempty"`
	Dimensions   uint   `toml:"dimensions,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// ClassifierConfig holds conflict classifier settings.
type ClassifierConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// StreamConfig holds fact event stream settings.
type StreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// RetrievalConfig holds recall pipeline settings.
type RetrievalConfig struct {
	TopK            int     `toml:"top_k,omitempty"`
	MinScore        float64 `toml:"min_score,omitempty"`
	BranchTimeoutMS int     `toml:"branch_timeout_ms,omitempty"`
	DefaultMode     string  `toml:"default_mode,omitempty"`
	DefaultHeat     int     `toml:"default_heat,omitempty"`
}

// IndexerConfig holds background embedding worker settings.
type IndexerConfig struct {
	Workers   int `toml:"workers,omitempty"`
	QueueSize int `toml:"queue_size,omitempty"`
}

// LogConfig holds logging settings. File is an optional path that receives
// JSON log lines alongside the terminal output.
type LogConfig struct {
	Debug bool   `toml:"debug,omitempty"`
	JSON  bool   `toml:"json,omitempty"`
	File  string `toml:"file,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(name string, get func(c *Config) uint, set func(c *Config, v uint)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if get(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(get(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			set(c, uint(n))
			return nil
		},
	}
}

func intKey(name string, get func(c *Config) int, set func(c *Config, v int)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(get(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			set(c, n)
			return nil
		},
	}
}

func boolKey(name string, get func(c *Config) bool, set func(c *Config, v bool)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(get(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			set(c, b)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.libsql_url": {
		get: func(c *Config) string { return c.Storage.LibSQLURL },
		set: func(c *Config, v string) error { c.Storage.LibSQLURL = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"vector.provider": {
		get: func(c *Config) string { return c.Vector.Provider },
		set: func(c *Config, v string) error { c.Vector.Provider = v; return nil },
	},
	"vector.sqlite_path": {
		get: func(c *Config) string { return c.Vector.SQLitePath },
		set: func(c *Config, v string) error { c.Vector.SQLitePath = v; return nil },
	},
	"vector.qdrant_target": {
		get: func(c *Config) string { return c.Vector.QdrantTarget },
		set: func(c *Config, v string) error { c.Vector.QdrantTarget = v; return nil },
	},
	"vector.qdrant_api_key": {
		get: func(c *Config) string { return c.Vector.QdrantAPIKey },
		set: func(c *Config, v string) error { c.Vector.QdrantAPIKey = v; return nil },
	},
	"vector.collection": {
		get: func(c *Config) string { return c.Vector.Collection },
		set: func(c *Config, v string) error { c.Vector.Collection = v; return nil },
	},
	"vector.dimensions": uintKey("vector.dimensions",
		func(c *Config) uint { return c.Vector.Dimensions },
		func(c *Config, v uint) { c.Vector.Dimensions = v },
	),
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"classifier.provider": {
		get: func(c *Config) string { return c.Classifier.Provider },
		set: func(c *Config, v string) error { c.Classifier.Provider = v; return nil },
	},
	"classifier.target": {
		get: func(c *Config) string { return c.Classifier.Target },
		set: func(c *Config, v string) error { c.Classifier.Target = v; return nil },
	},
	"classifier.model": {
		get: func(c *Config) string { return c.Classifier.Model },
		set: func(c *Config, v string) error { c.Classifier.Model = v; return nil },
	},
	"stream.provider": {
		get: func(c *Config) string { return c.Stream.Provider },
		set: func(c *Config, v string) error { c.Stream.Provider = v; return nil },
	},
	"stream.brokers": {
		get: func(c *Config) string { return strings.Join(c.Stream.Brokers, ",") },
		set: func(c *Config, v string) error {
			brokers := []string{}
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					brokers = append(brokers, b)
				}
			}
			c.Stream.Brokers = brokers
			return nil
		},
	},
	"stream.topic": {
		get: func(c *Config) string { return c.Stream.Topic },
		set: func(c *Config, v string) error { c.Stream.Topic = v; return nil },
	},
	"retrieval.top_k": intKey("retrieval.top_k",
		func(c *Config) int { return c.Retrieval.TopK },
		func(c *Config, v int) { c.Retrieval.TopK = v },
	),
	"retrieval.min_score": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Retrieval.MinScore, 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.min_score: %w", err)
			}
			c.Retrieval.MinScore = f
			return nil
		},
	},
	"retrieval.branch_timeout_ms": intKey("retrieval.branch_timeout_ms",
		func(c *Config) int { return c.Retrieval.BranchTimeoutMS },
		func(c *Config, v int) { c.Retrieval.BranchTimeoutMS = v },
	),
	"retrieval.default_mode": {
		get: func(c *Config) string { return c.Retrieval.DefaultMode },
		set: func(c *Config, v string) error { c.Retrieval.DefaultMode = v; return nil },
	},
	"retrieval.default_heat": intKey("retrieval.default_heat",
		func(c *Config) int { return c.Retrieval.DefaultHeat },
		func(c *Config, v int) { c.Retrieval.DefaultHeat = v },
	),
	"indexer.workers": intKey("indexer.workers",
		func(c *Config) int { return c.Indexer.Workers },
		func(c *Config, v int) { c.Indexer.Workers = v },
	),
	"indexer.queue_size": intKey("indexer.queue_size",
		func(c *Config) int { return c.Indexer.QueueSize },
		func(c *Config, v int) { c.Indexer.QueueSize = v },
	),
	"log.debug": boolKey("log.debug",
		func(c *Config) bool { return c.Log.Debug },
		func(c *Config, v bool) { c.Log.Debug = v },
	),
	"log.json": boolKey("log.json",
		func(c *Config) bool { return c.Log.JSON },
		func(c *Config, v bool) { c.Log.JSON = v },
	),
	"log.file": {
		get: func(c *Config) string { return c.Log.File },
		set: func(c *Config, v string) error { c.Log.File = v; return nil },
	},
}
