// Package initcmder provides the init command for initializing a local
// .memex directory with a preset configuration.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/dotdir"
)

const (
	dirName = ".memex"
)

const initLongDesc string = `Initialize a new .memex/ directory in the current working directory.

Creates a local .memex/ directory that takes precedence over the default
~/.memex/ directory for configuration, profile state, and the embedded
database, then writes a config.toml for the chosen deployment preset.

Presets:
  local    SQLite storage and vector index, local Ollama (default)
  server   Postgres storage, Qdrant vector index, Kafka fact stream

The server preset prompts for the Postgres password when run from a
terminal; otherwise set storage.postgres_dsn with "memex config set".

Examples:
  memex init
  memex init --preset server`

const initShortDesc string = "Initialize a local .memex/ directory"

type initCommander struct {
	preset string
	force  bool
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "local", "Deployment preset (local, server)")
	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Overwrite an existing config.toml")
	cmd.RegisterFlagCompletionFunc("preset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func (c *initCommander) run() error {
	cfg, err := config.PresetConfig(c.preset)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", dirName, err)
	}

	configPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(configPath); err == nil && !c.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	if cfg.Storage.Provider == "postgres" && cfg.Storage.PostgresDSN == "" {
		dsn, err := promptPostgresDSN()
		if err != nil {
			return err
		}
		cfg.Storage.PostgresDSN = dsn
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Profile state and the embedded database land next to the config.
	if _, err := dotdir.NewManager().Ensure(dir); err != nil {
		return err
	}

	fmt.Printf("\n  %s Initialized %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(dir),
		cliui.DimStyle.Render(fmt.Sprintf("(%s preset)", c.preset)),
	)
	return nil
}

// promptPostgresDSN asks for the Postgres password without echoing it.
// When stdin is not a terminal the DSN is left empty for a later
// "memex config set storage.postgres_dsn".
func promptPostgresDSN() (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", nil
	}

	fmt.Print("  Postgres password for memex@localhost: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(password) == 0 {
		return "", nil
	}

	return fmt.Sprintf("postgres://memex:%s@localhost:5432/memex", string(password)), nil
}
