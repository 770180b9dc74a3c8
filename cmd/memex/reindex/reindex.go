// Package reindexcmder provides the reindex command for re-embedding a
// profile's facts into the vector index.
package reindexcmder

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/dotdir"
	embeddingutils "github.com/nickyai/memex/pkg/embeddings/utils"
	"github.com/nickyai/memex/pkg/indexer"
	memexlogger "github.com/nickyai/memex/pkg/logger"
	storageutils "github.com/nickyai/memex/pkg/storage/utils"
	"github.com/nickyai/memex/pkg/vector"
	vectorutils "github.com/nickyai/memex/pkg/vector/utils"
)

const reindexLongDesc string = `Re-embed every active fact for a profile.

Useful after switching embedding models, changing the vector provider,
or recovering from dropped background indexing. Requires embedding and
vector providers to be configured; see "memex config list".

Examples:
  memex reindex --profile nicky`

const reindexShortDesc string = "Re-embed a profile's facts"

type reindexCommander struct {
	profileID string
	configDir string
}

func NewReindexCmd() *cobra.Command {
	cmder := &reindexCommander{}

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: reindexShortDesc,
		Long:  reindexLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "", "Persona profile to reindex")

	return cmd
}

func (c *reindexCommander) run(cmd *cobra.Command) error {
	var err error
	c.configDir, err = cmd.Flags().GetString("config-dir")
	if err != nil {
		return fmt.Errorf("could not get config-dir flag: %w", err)
	}
	c.profileID, err = dotdir.NewManager().ResolveProfile(c.profileID, c.configDir)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Embedding.Provider == "none" || cfg.Embedding.Provider == "" {
		return fmt.Errorf("embedding provider is not configured; set embedding.provider first")
	}
	if cfg.Vector.Provider == "none" || cfg.Vector.Provider == "" {
		return fmt.Errorf("vector provider is not configured; set vector.provider first")
	}

	ctx := cmd.Context()
	logger := memexlogger.Nop()

	sqlitePath := cfg.Storage.SQLitePath
	if cfg.Storage.Provider == "sqlite" && sqlitePath == "" {
		dir, err := dotdir.NewManager().Ensure(c.configDir)
		if err != nil {
			return fmt.Errorf("resolving database path: %w", err)
		}
		sqlitePath = filepath.Join(dir, "memex.db")
	}

	store, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{
		Provider:    cfg.Storage.Provider,
		SQLitePath:  sqlitePath,
		LibSQLURL:   cfg.Storage.LibSQLURL,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return fmt.Errorf("opening fact store: %w", err)
	}
	defer store.Close()

	embedder, err := embeddingutils.NewEmbedder(embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	vectorDriver, err := newVectorDriver(ctx, cfg, sqlitePath, c.configDir)
	if err != nil {
		return err
	}
	defer vectorDriver.Close()

	pool := indexer.NewPool(store, vectorDriver, embedder, nil, indexer.Options{}, logger)
	defer pool.Close()

	var indexed int
	if err := cliui.Step(os.Stdout, fmt.Sprintf("Reindexing %s", c.profileID), func() error {
		var reindexErr error
		indexed, reindexErr = pool.Reindex(ctx, c.profileID)
		return reindexErr
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s Reindexed %s facts for %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(indexed)),
		cliui.NameStyle.Render(c.profileID),
	)
	return nil
}

func newVectorDriver(ctx context.Context, cfg *config.Config, storeSQLitePath, configDir string) (vector.Driver, error) {
	opts := vectorutils.NewVectorDriverOpts{
		Provider:   cfg.Vector.Provider,
		Collection: cfg.Vector.Collection,
		Dimensions: cfg.Vector.Dimensions,
	}

	switch cfg.Vector.Provider {
	case "sqlite":
		opts.SQLitePath = cfg.Vector.SQLitePath
		if opts.SQLitePath == "" {
			opts.SQLitePath = storeSQLitePath
		}
		if opts.SQLitePath == "" {
			dir, err := dotdir.NewManager().Ensure(configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving vector database path: %w", err)
			}
			opts.SQLitePath = filepath.Join(dir, "memex.db")
		}

	case "qdrant":
		host, portStr, err := net.SplitHostPort(cfg.Vector.QdrantTarget)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant target %q (want host:port): %w", cfg.Vector.QdrantTarget, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
		}
		opts.QdrantHost = host
		opts.QdrantPort = port
		opts.QdrantAPIKey = cfg.Vector.QdrantAPIKey
		opts.QdrantUseTLS = opts.QdrantAPIKey != ""
	}

	driver, err := vectorutils.NewVectorDriver(ctx, opts, memexlogger.Nop())
	if err != nil {
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}
	return driver, nil
}
