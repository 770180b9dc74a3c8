// Package configcmder provides the config command for managing persistent
// memex configuration stored in the .memex/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent memex configuration.

Configuration is stored as config.toml in the .memex/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  api.listen, client.api_target,
  storage.provider, storage.sqlite_path, storage.libsql_url, storage.postgres_dsn,
  vector.provider, vector.qdrant_target, vector.collection, vector.dimensions,
  embedding.provider, embedding.target, embedding.model,
  classifier.provider, classifier.target, classifier.model,
  stream.provider, stream.brokers, stream.topic,
  retrieval.top_k, retrieval.default_mode, retrieval.default_heat,
  indexer.workers, indexer.queue_size,
  log.debug, log.json, log.file

Use subcommands to get, set, or list configuration values:
  memex config set <key> <value>    Set a configuration value
  memex config get <key>            Get a configuration value
  memex config list                 List all configuration values

Examples:
  memex config set storage.provider sqlite
  memex config set embedding.model nomic-embed-text
  memex config get retrieval.default_mode
  memex config list`

const configShortDesc string = "Manage persistent memex configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
