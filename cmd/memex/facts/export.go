package factscmder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/dotdir"
	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
	storageutils "github.com/nickyai/memex/pkg/storage/utils"
)

const exportLongDesc string = `Export a profile's facts for backup or prompt assembly.

Unlike the other facts subcommands, export opens the configured fact store
directly, so it works without a running API server.

Formats:
  csv    one row per fact, suitable for spreadsheets and diffing
  text   prompt-ready blocks, most important facts first

Examples:
  memex facts export --profile nicky --format csv > nicky.csv
  memex facts export --format text --lane canon`

const exportShortDesc string = "Export a profile's facts (csv or text)"

type exportCommander struct {
	profileID string
	format    string
	lane      string
	status    string
	configDir string
}

func newExportCmd() *cobra.Command {
	cmder := &exportCommander{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: exportShortDesc,
		Long:  exportLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "", "Persona profile to export")
	cmd.Flags().StringVar(&cmder.format, "format", "csv", "Output format (csv, text)")
	cmd.Flags().StringVar(&cmder.lane, "lane", "", "Filter by lane (canon, rumor)")
	cmd.Flags().StringVar(&cmder.status, "status", "", "Filter by status (active, deprecated, ambiguous)")

	return cmd
}

func (c *exportCommander) run(cmd *cobra.Command) error {
	if c.format != "csv" && c.format != "text" {
		return fmt.Errorf("unknown format %q (expected csv or text)", c.format)
	}

	var err error
	c.configDir, err = cmd.Flags().GetString("config-dir")
	if err != nil {
		return fmt.Errorf("could not get config-dir flag: %w", err)
	}
	c.profileID, err = resolveProfile(c.profileID, c.configDir)
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

	sqlitePath := cfg.Storage.SQLitePath
	if cfg.Storage.Provider == "sqlite" && sqlitePath == "" {
		dir, err := dotdir.NewManager().Ensure(c.configDir)
		if err != nil {
			return fmt.Errorf("resolving database path: %w", err)
		}
		sqlitePath = filepath.Join(dir, "memex.db")
	}

	ctx := cmd.Context()
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

	q := storage.FactQuery{ProfileID: c.profileID}
	if c.lane != "" {
		q.Lane = memory.Lane(c.lane)
	}
	if c.status != "" {
		q.Statuses = []memory.Status{memory.Status(c.status)}
	}

	facts, err := store.ListFacts(ctx, q)
	if err != nil {
		return fmt.Errorf("listing facts: %w", err)
	}

	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Importance != facts[j].Importance {
			return facts[i].Importance > facts[j].Importance
		}
		return facts[i].CreatedAt.After(facts[j].CreatedAt)
	})

	if c.format == "csv" {
		return writeCSV(facts)
	}
	writeText(c.profileID, facts)
	return nil
}

func writeCSV(facts []*memory.Fact) error {
	w := csv.NewWriter(os.Stdout)
	header := []string{"id", "content", "type", "lane", "status", "importance", "confidence", "support", "source", "created_at"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	for _, fact := range facts {
		row := []string{
			fact.ID,
			fact.Content,
			string(fact.Type),
			string(fact.Lane),
			string(fact.Status),
			strconv.Itoa(fact.Importance),
			strconv.Itoa(fact.Confidence),
			strconv.Itoa(fact.SupportCount),
			fact.Source,
			fact.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// writeText emits prompt-ready blocks: the lane and type on a tag line,
// then the content, so the output can be pasted into a system prompt.
func writeText(profileID string, facts []*memory.Fact) {
	fmt.Printf("# Memory export for %s (%s)\n", profileID, time.Now().Format("2006-01-02"))
	for _, fact := range facts {
		fmt.Println()
		fmt.Printf("[%s/%s] importance=%d confidence=%d\n", fact.Lane, fact.Type, fact.Importance, fact.Confidence)
		fmt.Println(fact.Content)
		if fact.TemporalContext != "" {
			fmt.Printf("(timing: %s)\n", fact.TemporalContext)
		}
	}
}
