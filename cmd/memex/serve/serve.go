// Package servecmder provides the serve command for running the memex API
// server with its background indexer.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nickyai/memex/api"
	apimcp "github.com/nickyai/memex/api/mcp"
	classifierutils "github.com/nickyai/memex/pkg/classifier/utils"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/contradiction"
	"github.com/nickyai/memex/pkg/dotdir"
	"github.com/nickyai/memex/pkg/embeddings"
	embeddingutils "github.com/nickyai/memex/pkg/embeddings/utils"
	"github.com/nickyai/memex/pkg/eventstream"
	streamutils "github.com/nickyai/memex/pkg/eventstream/utils"
	"github.com/nickyai/memex/pkg/indexer"
	"github.com/nickyai/memex/pkg/logger"
	"github.com/nickyai/memex/pkg/retrieval"
	"github.com/nickyai/memex/pkg/storage"
	storageutils "github.com/nickyai/memex/pkg/storage/utils"
	"github.com/nickyai/memex/pkg/timeline"
	"github.com/nickyai/memex/pkg/vector"
	vectorutils "github.com/nickyai/memex/pkg/vector/utils"
)

const serveLongDesc string = `Run the memex API server.

Serves the HTTP API for recalling, curating, and auditing persona memory,
mounts the MCP endpoint at /mcp, and runs the background embedding indexer.

Configuration comes from flags, MEMEX_* environment variables, and
config.toml in the .memex/ directory, in that order of precedence.

Examples:
  memex serve
  memex serve --api-listen :7411 --storage-provider sqlite
  memex serve --embedding-provider none --vector-provider none`

const serveShortDesc string = "Run the memex API server"

// serveFlags is the flag registry for the serve command. Names, viper
// keys, and help text live here so they cannot drift from the config
// file layout.
var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name: "api-listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagStorageProv: {
		Name: "storage-provider", ViperKey: "storage.provider",
		Description: "Fact store backend (memory, sqlite, libsql, postgres)",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path",
		Description: "Path to the SQLite database (default: <dotdir>/memex.db)",
	},
	config.FlagLibSQLURL: {
		Name: "libsql-url", ViperKey: "storage.libsql_url",
		Description: "libSQL database URL",
	},
	config.FlagPostgresDSN: {
		Name: "postgres-dsn", ViperKey: "storage.postgres_dsn",
		Description: "Postgres connection string",
	},
	config.FlagVectorProv: {
		Name: "vector-provider", ViperKey: "vector.provider",
		Description: "Vector index backend (sqlite, qdrant, none)",
	},
	config.FlagQdrantTarget: {
		Name: "qdrant-target", ViperKey: "vector.qdrant_target",
		Description: "Qdrant gRPC target (host:port)",
	},
	config.FlagEmbeddingProv: {
		Name: "embedding-provider", ViperKey: "embedding.provider",
		Description: "Embedding backend (ollama, none)",
	},
	config.FlagEmbeddingTgt: {
		Name: "embedding-target", ViperKey: "embedding.target",
		Description: "Embedding provider base URL",
	},
	config.FlagEmbeddingModel: {
		Name: "embedding-model", ViperKey: "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagStreamProv: {
		Name: "stream-provider", ViperKey: "stream.provider",
		Description: "Fact event stream backend (kafka, none)",
	},
	config.FlagTopic: {
		Name: "topic", ViperKey: "stream.topic",
		Description: "Fact event stream topic",
	},
	config.FlagWorkers: {
		Name: "workers", ViperKey: "indexer.workers",
		Description: "Background embedding worker count",
	},
	config.FlagLogFile: {
		Name: "log-file", ViperKey: "log.file",
		Description: "File that receives JSON log lines alongside stdout",
	},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageProv,
	config.FlagSQLite,
	config.FlagLibSQLURL,
	config.FlagPostgresDSN,
	config.FlagVectorProv,
	config.FlagQdrantTarget,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagStreamProv,
	config.FlagTopic,
	config.FlagWorkers,
	config.FlagLogFile,
}

type ServeCommander struct {
	apiListen string

	storageProvider string
	sqlitePath      string
	libsqlURL       string
	postgresDSN     string

	vectorProvider string
	qdrantTarget   string

	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string

	streamProvider string
	streamTopic    string

	workers int
	logFile string

	configDir string
	debug     bool

	v        *viper.Viper
	levelVar *slog.LevelVar
	logger   *slog.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageProv, &cmder.storageProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagLibSQLURL, &cmder.libsqlURL)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagQdrantTarget, &cmder.qdrantTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddStringFlag(cmd, serveFlags, config.FlagStreamProv, &cmder.streamProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagTopic, &cmder.streamTopic)
	config.AddIntFlag(cmd, serveFlags, config.FlagWorkers, &cmder.workers)
	config.AddStringFlag(cmd, serveFlags, config.FlagLogFile, &cmder.logFile)

	return cmd
}

// loadConfig initializes viper, binds flags into the precedence chain,
// and copies the resolved values back onto the commander.
func (c *ServeCommander) loadConfig(cmd *cobra.Command) error {
	var err error
	c.debug, err = cmd.Flags().GetBool("debug")
	if err != nil {
		return fmt.Errorf("could not get debug flag: %w", err)
	}
	c.configDir, err = cmd.Flags().GetString("config-dir")
	if err != nil {
		return fmt.Errorf("could not get config-dir flag: %w", err)
	}

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

	c.v = v
	c.apiListen = v.GetString("api.listen")
	c.storageProvider = v.GetString("storage.provider")
	c.sqlitePath = v.GetString("storage.sqlite_path")
	c.libsqlURL = v.GetString("storage.libsql_url")
	c.postgresDSN = v.GetString("storage.postgres_dsn")
	c.vectorProvider = v.GetString("vector.provider")
	c.qdrantTarget = v.GetString("vector.qdrant_target")
	c.embeddingProvider = v.GetString("embedding.provider")
	c.embeddingTarget = v.GetString("embedding.target")
	c.embeddingModel = v.GetString("embedding.model")
	c.streamProvider = v.GetString("stream.provider")
	c.streamTopic = v.GetString("stream.topic")
	c.workers = v.GetInt("indexer.workers")
	c.logFile = v.GetString("log.file")
	if v.GetBool("log.debug") {
		c.debug = true
	}

	return nil
}

func (c *ServeCommander) run(ctx context.Context) error {
	if err := c.setupLogger(); err != nil {
		return err
	}

	store, err := c.newStorageDriver(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := c.newEmbedder()
	if err != nil {
		return err
	}

	vectorDriver, err := c.newVectorDriver(ctx)
	if err != nil {
		return err
	}
	if vectorDriver != nil {
		defer vectorDriver.Close()
	}

	conflictClassifier, err := classifierutils.NewClassifier(classifierutils.NewClassifierOpts{
		ProviderType: c.v.GetString("classifier.provider"),
		TargetURL:    c.v.GetString("classifier.target"),
		Model:        c.v.GetString("classifier.model"),
	})
	if err != nil {
		return fmt.Errorf("creating classifier: %w", err)
	}

	publisher, err := streamutils.NewPublisher(streamutils.NewPublisherOpts{
		Provider: c.streamProvider,
		Brokers:  c.v.GetStringSlice("stream.brokers"),
		Topic:    c.streamTopic,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	defer publisher.Close()

	pool := c.newIndexerPool(store, vectorDriver, embedder, publisher)
	if pool != nil {
		defer pool.Close()
	}

	ranker := retrieval.NewRanker(store, vectorDriver, embedder, retrieval.Options{
		TopK:          c.v.GetInt("retrieval.top_k"),
		MinScore:      c.v.GetFloat64("retrieval.min_score"),
		BranchTimeout: time.Duration(c.v.GetInt("retrieval.branch_timeout_ms")) * time.Millisecond,
	}, c.logger)
	engine := contradiction.NewEngine(store, conflictClassifier, publisher, c.logger)
	auditor := timeline.NewAuditor(store, publisher, c.logger)

	mcpServer, err := apimcp.NewServer(apimcp.Config{
		Ranker:  ranker,
		Engine:  engine,
		Auditor: auditor,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server := api.NewServer(
		api.Config{
			ListenAddr:  c.apiListen,
			DefaultMode: c.v.GetString("retrieval.default_mode"),
			DefaultHeat: c.v.GetInt("retrieval.default_heat"),
		},
		api.Deps{
			Store:   store,
			Ranker:  ranker,
			Engine:  engine,
			Auditor: auditor,
			Indexer: pool,
			MCP:     mcpServer.Handler(),
		},
		c.logger,
	)

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	c.watchConfig(watchCtx)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// setupLogger builds the server logger: JSON lines, optional file copy,
// and a LevelVar so the config watcher can flip debug on and off live.
func (c *ServeCommander) setupLogger() error {
	c.levelVar = new(slog.LevelVar)
	if c.debug {
		c.levelVar.Set(slog.LevelDebug)
	}

	opts := []logger.Option{
		logger.WithJSON(c.v.GetBool("log.json")),
		logger.WithLevelVar(c.levelVar),
	}
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		opts = append(opts, logger.WithWriters(os.Stdout, f))
	}

	c.logger = logger.New(opts...)
	return nil
}

// watchConfig reacts to config.toml edits by re-reading the log level.
// Other settings require a restart; the watcher says so once per change.
func (c *ServeCommander) watchConfig(ctx context.Context) {
	path := c.v.ConfigFileUsed()
	if path == "" {
		return
	}

	go func() {
		err := config.Watch(ctx, path, c.logger, func() {
			if err := c.v.ReadInConfig(); err != nil {
				c.logger.Warn("re-reading config failed", "error", err)
				return
			}

			level := slog.LevelInfo
			if c.v.GetBool("log.debug") {
				level = slog.LevelDebug
			}
			if c.levelVar.Level() != level {
				c.levelVar.Set(level)
				c.logger.Info("log level changed", "level", level.String())
			} else {
				c.logger.Info("config file changed, restart to apply non-log settings")
			}
		})
		if err != nil && ctx.Err() == nil {
			c.logger.Warn("config watcher stopped", "error", err)
		}
	}()
}

func (c *ServeCommander) newStorageDriver(ctx context.Context) (storage.Driver, error) {
	sqlitePath := c.sqlitePath
	if c.storageProvider == "sqlite" && sqlitePath == "" {
		dir, err := dotdir.NewManager().Ensure(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		sqlitePath = filepath.Join(dir, "memex.db")
	}

	store, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{
		Provider:    c.storageProvider,
		SQLitePath:  sqlitePath,
		LibSQLURL:   c.libsqlURL,
		PostgresDSN: c.postgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("creating fact store: %w", err)
	}

	c.logger.Info("fact store ready", "provider", c.storageProvider)
	return store, nil
}

func (c *ServeCommander) newEmbedder() (embeddings.Embedder, error) {
	if c.embeddingProvider == "none" || c.embeddingProvider == "" {
		c.logger.Info("embeddings disabled, semantic recall unavailable")
		return nil, nil
	}

	embedder, err := embeddingutils.NewEmbedder(embeddingutils.NewEmbedderOpts{
		ProviderType: c.embeddingProvider,
		TargetURL:    c.embeddingTarget,
		Model:        c.embeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

func (c *ServeCommander) newVectorDriver(ctx context.Context) (vector.Driver, error) {
	if c.vectorProvider == "none" || c.vectorProvider == "" {
		c.logger.Info("vector index disabled, semantic recall unavailable")
		return nil, nil
	}

	opts := vectorutils.NewVectorDriverOpts{
		Provider:   c.vectorProvider,
		Collection: c.v.GetString("vector.collection"),
		Dimensions: c.v.GetUint("vector.dimensions"),
	}

	switch c.vectorProvider {
	case "sqlite":
		opts.SQLitePath = c.v.GetString("vector.sqlite_path")
		if opts.SQLitePath == "" {
			// Share the fact store database so a local setup stays one file.
			dir, err := dotdir.NewManager().Ensure(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving vector database path: %w", err)
			}
			opts.SQLitePath = c.sqlitePath
			if opts.SQLitePath == "" {
				opts.SQLitePath = filepath.Join(dir, "memex.db")
			}
		}

	case "qdrant":
		host, port, err := splitQdrantTarget(c.qdrantTarget)
		if err != nil {
			return nil, err
		}
		opts.QdrantHost = host
		opts.QdrantPort = port
		opts.QdrantAPIKey = c.v.GetString("vector.qdrant_api_key")
		opts.QdrantUseTLS = opts.QdrantAPIKey != ""
	}

	driver, err := vectorutils.NewVectorDriver(ctx, opts, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}
	return driver, nil
}

func (c *ServeCommander) newIndexerPool(store storage.Driver, vectorDriver vector.Driver, embedder embeddings.Embedder, publisher eventstream.Publisher) *indexer.Pool {
	if embedder == nil || vectorDriver == nil {
		c.logger.Info("indexer disabled, facts will not be embedded")
		return nil
	}

	return indexer.NewPool(store, vectorDriver, embedder, publisher, indexer.Options{
		Workers:   c.workers,
		QueueSize: c.v.GetInt("indexer.queue_size"),
	}, c.logger)
}

func splitQdrantTarget(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant target %q (want host:port): %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}
