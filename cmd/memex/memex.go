// Package memexcmder
package memexcmder

import (
	"github.com/spf13/cobra"

	auditcmder "github.com/nickyai/memex/cmd/memex/audit"
	configcmder "github.com/nickyai/memex/cmd/memex/config"
	contradictionscmder "github.com/nickyai/memex/cmd/memex/contradictions"
	eventscmder "github.com/nickyai/memex/cmd/memex/events"
	factscmder "github.com/nickyai/memex/cmd/memex/facts"
	initcmder "github.com/nickyai/memex/cmd/memex/initialize"
	profilecmder "github.com/nickyai/memex/cmd/memex/profile"
	recallcmder "github.com/nickyai/memex/cmd/memex/recall"
	reindexcmder "github.com/nickyai/memex/cmd/memex/reindex"
	seedcmder "github.com/nickyai/memex/cmd/memex/seed"
	servecmder "github.com/nickyai/memex/cmd/memex/serve"
	versioncmder "github.com/nickyai/memex/cmd/version"
)

const memexLongDesc string = `Memex is a memory retrieval and consistency engine for persona agents.

Run the server with:
  memex serve          Run the API server (HTTP + MCP)

Work with persona memory:
  memex recall         Retrieve ranked facts for a conversation turn
  memex facts          Add, inspect, curate, and export facts
  memex events         Manage timeline events and fact links
  memex contradictions Scan, resolve, and dismiss contradictions
  memex audit          Audit facts against the event timeline`

const memexShortDesc string = "Memex - Persona Memory Engine"

func NewMemexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memex",
		Short: memexShortDesc,
		Long:  memexLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Path to a .memex/ directory (default: ./.memex or ~/.memex)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(factscmder.NewFactsCmd())
	cmd.AddCommand(eventscmder.NewEventsCmd())
	cmd.AddCommand(contradictionscmder.NewContradictionsCmd())
	cmd.AddCommand(auditcmder.NewAuditCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(reindexcmder.NewReindexCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(profilecmder.NewProfileCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
