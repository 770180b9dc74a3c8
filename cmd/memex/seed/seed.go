// Package seedcmder provides the seed command for loading a demo persona
// into the configured fact store.
package seedcmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/dotdir"
	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
	storageutils "github.com/nickyai/memex/pkg/storage/utils"
)

const seedLongDesc string = `Seed a demo persona into the configured fact store.

Loads "nicky", a fictional indie musician, with canon and rumor lane
facts, a couple of timeline events, and fact-event links, so recall,
contradiction scans, and timeline audits have something to chew on.

Examples:
  memex seed
  memex seed --sqlite ./memex.db
  memex seed --profile demo`

const seedShortDesc string = "Seed a demo persona"

type seedCommander struct {
	profileID  string
	sqlitePath string
	configDir  string
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "nicky", "Profile ID to seed under")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to SQLite database (overrides config)")

	return cmd
}

func (c *seedCommander) run(cmd *cobra.Command) error {
	var err error
	c.configDir, err = cmd.Flags().GetString("config-dir")
	if err != nil {
		return fmt.Errorf("could not get config-dir flag: %w", err)
	}

	ctx := cmd.Context()
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var factCount, eventCount int
	if err := cliui.Step(os.Stdout, "Seeding demo persona", func() error {
		var seedErr error
		factCount, eventCount, seedErr = seedPersona(ctx, store, c.profileID)
		return seedErr
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s Seeded %s facts %s for profile %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(factCount)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d events)", eventCount)),
		cliui.NameStyle.Render(c.profileID),
	)
	return nil
}

func (c *seedCommander) openStore(ctx context.Context) (storage.Driver, error) {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	provider := cfg.Storage.Provider
	sqlitePath := c.sqlitePath
	if sqlitePath != "" {
		provider = "sqlite"
	} else {
		sqlitePath = cfg.Storage.SQLitePath
	}
	if provider == "sqlite" && sqlitePath == "" {
		dir, err := dotdir.NewManager().Ensure(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		sqlitePath = filepath.Join(dir, "memex.db")
	}

	store, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{
		Provider:    provider,
		SQLitePath:  sqlitePath,
		LibSQLURL:   cfg.Storage.LibSQLURL,
		PostgresDSN: cfg.Storage.PostgresDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("opening fact store: %w", err)
	}
	return store, nil
}

type seedFact struct {
	content    string
	lane       memory.Lane
	factType   memory.FactType
	importance int
	confidence int
	key        string
	keywords   []string
	temporal   string
	eventName  string
}

type seedEvent struct {
	name        string
	date        string
	description string
}

var demoEvents = []seedEvent{
	{
		name:        "debut album release",
		date:        "2021-06-18",
		description: "Self-released 'Night Static' on all platforms",
	},
	{
		name:        "portland warehouse show",
		date:        "2023-11-04",
		description: "Headline set at a converted warehouse venue",
	},
	{
		name:        "second album release",
		date:        "2027-03-01",
		description: "Planned follow-up record, date still tentative",
	},
}

var demoFacts = []seedFact{
	{
		content:    "grew up in Portland, Oregon",
		lane:       memory.LaneCanon,
		factType:   memory.TypeFact,
		importance: 90,
		confidence: 95,
		key:        "nicky.hometown",
		keywords:   []string{"portland", "hometown", "oregon"},
	},
	{
		content:    "self-released the debut album 'Night Static' in 2021",
		lane:       memory.LaneCanon,
		factType:   memory.TypeFact,
		importance: 85,
		confidence: 90,
		key:        "nicky.debut",
		keywords:   []string{"album", "debut", "night static"},
		eventName:  "debut album release",
	},
	{
		content:    "prefers recording vocals between midnight and 4am",
		lane:       memory.LaneCanon,
		factType:   memory.TypePreference,
		importance: 60,
		confidence: 80,
		keywords:   []string{"recording", "vocals", "night"},
	},
	{
		content:    "the second album will drop soon, sometime next spring",
		lane:       memory.LaneCanon,
		factType:   memory.TypeContext,
		importance: 70,
		confidence: 75,
		keywords:   []string{"album", "upcoming"},
		temporal:   "upcoming as of late 2026",
		eventName:  "second album release",
	},
	{
		content:    "allegedly wrote the whole debut album in one weekend",
		lane:       memory.LaneRumor,
		factType:   memory.TypeLore,
		importance: 55,
		confidence: 35,
		key:        "nicky.debut",
		keywords:   []string{"album", "debut", "legend"},
	},
	{
		content:    "supposedly snuck into their own warehouse show through the loading dock",
		lane:       memory.LaneRumor,
		factType:   memory.TypeStory,
		importance: 45,
		confidence: 30,
		keywords:   []string{"warehouse", "portland", "show"},
		eventName:  "portland warehouse show",
	},
	{
		content:    "rumored to keep a theremin in the tour van",
		lane:       memory.LaneRumor,
		factType:   memory.TypeLore,
		importance: 40,
		confidence: 25,
		keywords:   []string{"theremin", "tour"},
	},
}

// seedPersona writes the demo events first so facts can link to them by
// canonical name. Re-seeding the same profile adds duplicates; use a
// fresh database for a clean slate.
func seedPersona(ctx context.Context, store storage.Driver, profileID string) (int, int, error) {
	eventIDs := make(map[string]string, len(demoEvents))
	for _, se := range demoEvents {
		event := memory.NewEvent(profileID, se.name)
		event.EventDate = se.date
		event.Description = se.description
		if err := store.PutEvent(ctx, event); err != nil {
			return 0, 0, fmt.Errorf("seeding event %q: %w", se.name, err)
		}
		eventIDs[se.name] = event.ID
	}

	for _, sf := range demoFacts {
		fact := memory.NewFact(profileID, sf.content)
		fact.Lane = sf.lane
		fact.Type = sf.factType
		fact.Importance = sf.importance
		fact.Confidence = sf.confidence
		fact.CanonicalKey = sf.key
		fact.Keywords = sf.keywords
		fact.TemporalContext = sf.temporal
		fact.Source = "seed"
		fact.Normalize()

		if err := store.PutFact(ctx, fact); err != nil {
			return 0, 0, fmt.Errorf("seeding fact %q: %w", sf.content, err)
		}

		if sf.eventName != "" {
			if err := store.LinkFact(ctx, eventIDs[sf.eventName], fact.ID); err != nil {
				return 0, 0, fmt.Errorf("linking fact to %q: %w", sf.eventName, err)
			}
		}
	}

	return len(demoFacts), len(demoEvents), nil
}
