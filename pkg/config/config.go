package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nickyai/memex/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .memex/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the sorted list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	// Return in a stable, logical order matching the TOML section layout.
	ordered := []string{
		"client.api_target",
		"api.listen",
		"storage.provider",
		"storage.sqlite_path",
		"storage.libsql_url",
		"storage.postgres_dsn",
		"vector.provider",
		"vector.sqlite_path",
		"vector.qdrant_target",
		"vector.qdrant_api_key",
		"vector.collection",
		"vector.dimensions",
		"embedding.provider",
		"embedding.target",
		"embedding.model",
		"classifier.provider",
		"classifier.target",
		"classifier.model",
		"stream.provider",
		"stream.brokers",
		"stream.topic",
		"retrieval.top_k",
		"retrieval.min_score",
		"retrieval.branch_timeout_ms",
		"retrieval.default_mode",
		"retrieval.default_heat",
		"indexer.workers",
		"indexer.queue_size",
		"log.debug",
		"log.json",
		"log.file",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .memex/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Client.APITarget == "" {
		cfg.Client.APITarget = defaults.Client.APITarget
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = defaults.Storage.Provider
	}

	if cfg.Vector.Provider == "" {
		cfg.Vector.Provider = defaults.Vector.Provider
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = defaults.Vector.Collection
	}
	if cfg.Vector.Dimensions == 0 {
		cfg.Vector.Dimensions = defaults.Vector.Dimensions
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = defaults.Embedding.Provider
	}
	if cfg.Embedding.Target == "" {
		cfg.Embedding.Target = defaults.Embedding.Target
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaults.Embedding.Model
	}

	if cfg.Classifier.Provider == "" {
		cfg.Classifier.Provider = defaults.Classifier.Provider
	}
	if cfg.Classifier.Target == "" {
		cfg.Classifier.Target = defaults.Classifier.Target
	}
	if cfg.Classifier.Model == "" {
		cfg.Classifier.Model = defaults.Classifier.Model
	}

	if cfg.Stream.Provider == "" {
		cfg.Stream.Provider = defaults.Stream.Provider
	}
	if len(cfg.Stream.Brokers) == 0 {
		cfg.Stream.Brokers = defaults.Stream.Brokers
	}
	if cfg.Stream.Topic == "" {
		cfg.Stream.Topic = defaults.Stream.Topic
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = defaults.Retrieval.TopK
	}
	if cfg.Retrieval.BranchTimeoutMS == 0 {
		cfg.Retrieval.BranchTimeoutMS = defaults.Retrieval.BranchTimeoutMS
	}
	if cfg.Retrieval.DefaultMode == "" {
		cfg.Retrieval.DefaultMode = defaults.Retrieval.DefaultMode
	}
	if cfg.Retrieval.DefaultHeat == 0 {
		cfg.Retrieval.DefaultHeat = defaults.Retrieval.DefaultHeat
	}

	if cfg.Indexer.Workers == 0 {
		cfg.Indexer.Workers = defaults.Indexer.Workers
	}
	if cfg.Indexer.QueueSize == 0 {
		cfg.Indexer.QueueSize = defaults.Indexer.QueueSize
	}
}

// SaveConfig persists the configuration to config.toml in the target .memex/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named deployment preset.
// "local" keeps everything embedded: SQLite storage, SQLite vector index, and a
// local Ollama for embeddings and classification. "server" targets shared infra:
// Postgres storage, a Qdrant vector index, and a Kafka fact stream.
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	switch strings.ToLower(name) {
	case "local":
		return &Config{
			Version: CurrentV,
			Client: ClientConfig{
				APITarget: defaultClientAPITarget,
			},
			API: APIConfig{
				Listen: defaultAPIListen,
			},
			Storage: StorageConfig{
				Provider: "sqlite",
			},
			Vector: VectorConfig{
				Provider:   "sqlite",
				Collection: defaultVectorCollection,
				Dimensions: defaultVectorDimensions,
			},
			Embedding: EmbeddingConfig{
				Provider: "ollama",
				Target:   defaultEmbeddingTarget,
				Model:    defaultEmbeddingModel,
			},
			Classifier: ClassifierConfig{
				Provider: "ollama",
				Target:   defaultClassifierTarget,
				Model:    defaultClassifierModel,
			},
			Stream: StreamConfig{
				Provider: "none",
			},
		}, nil

	case "server":
		return &Config{
			Version: CurrentV,
			Client: ClientConfig{
				APITarget: defaultClientAPITarget,
			},
			API: APIConfig{
				Listen: defaultAPIListen,
			},
			Storage: StorageConfig{
				Provider: "postgres",
			},
			Vector: VectorConfig{
				Provider:     "qdrant",
				QdrantTarget: "localhost:6334",
				Collection:   defaultVectorCollection,
				Dimensions:   defaultVectorDimensions,
			},
			Embedding: EmbeddingConfig{
				Provider: "ollama",
				Target:   defaultEmbeddingTarget,
				Model:    defaultEmbeddingModel,
			},
			Classifier: ClassifierConfig{
				Provider: "ollama",
				Target:   defaultClassifierTarget,
				Model:    defaultClassifierModel,
			},
			Stream: StreamConfig{
				Provider: "kafka",
				Brokers:  defaultStreamBrokers(),
				Topic:    defaultStreamTopic,
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: local, server)", name)
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"local", "server"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
