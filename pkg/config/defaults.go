package config

const (
	defaultAPIListen       = ":7411"
	defaultClientAPITarget = "http://localhost:7411"

	defaultStorageProvider = "sqlite"

	defaultVectorProvider   = "sqlite"
	defaultVectorCollection = "memex_facts"
	defaultVectorDimensions = 768

	defaultEmbeddingProvider = "ollama"
	defaultEmbeddingTarget   = "http://localhost:11434"
	defaultEmbeddingModel    = "nomic-embed-text"

	defaultClassifierProvider = "ollama"
	defaultClassifierTarget   = "http://localhost:11434"
	defaultClassifierModel    = "llama3.2"

	defaultStreamProvider = "none"
	defaultStreamTopic    = "memex.facts"

	defaultRetrievalTopK      = 8
	defaultRetrievalTimeoutMS = 2000
	defaultRetrievalMode      = "chat"
	defaultRetrievalHeat      = 10

	defaultIndexerWorkers   = 2
	defaultIndexerQueueSize = 256
)

func defaultStreamBrokers() []string {
	return []string{"localhost:9092"}
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		Vector: VectorConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
			Dimensions: defaultVectorDimensions,
		},
		Embedding: EmbeddingConfig{
			Provider: defaultEmbeddingProvider,
			Target:   defaultEmbeddingTarget,
			Model:    defaultEmbeddingModel,
		},
		Classifier: ClassifierConfig{
			Provider: defaultClassifierProvider,
			Target:   defaultClassifierTarget,
			Model:    defaultClassifierModel,
		},
		Stream: StreamConfig{
			Provider: defaultStreamProvider,
			Brokers:  defaultStreamBrokers(),
			Topic:    defaultStreamTopic,
		},
		Retrieval: RetrievalConfig{
			TopK:            defaultRetrievalTopK,
			BranchTimeoutMS: defaultRetrievalTimeoutMS,
			DefaultMode:     defaultRetrievalMode,
			DefaultHeat:     defaultRetrievalHeat,
		},
		Indexer: IndexerConfig{
			Workers:   defaultIndexerWorkers,
			QueueSize: defaultIndexerQueueSize,
		},
	}
}
