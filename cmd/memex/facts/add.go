package factscmder

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/api"
	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/memory"
)

const addLongDesc string = `Add a fact to a persona's memory.

New facts land in the rumor lane with mid-range importance and confidence
unless told otherwise. Facts with a canonical key join the contradiction
scanner's canonical-key grouping.

Examples:
  memex facts add "grew up in Portland" --lane canon --importance 80
  memex facts add "allegedly owns a theremin" --keywords music,rumor
  memex facts add "hometown is Portland" --key nicky.hometown`

const addShortDesc string = "Add a fact"

type addCommander struct {
	profileID  string
	lane       string
	factType   string
	importance int
	confidence int
	key        string
	keywords   []string
	temporal   string
	source     string
	apiTarget  string
}

func newAddCmd() *cobra.Command {
	cmder := &addCommander{}

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: addShortDesc,
		Long:  addLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "", "Persona profile the fact belongs to")
	cmd.Flags().StringVar(&cmder.lane, "lane", "", "Lane (canon, rumor)")
	cmd.Flags().StringVarP(&cmder.factType, "type", "t", "", "Fact type (fact, preference, lore, context, story, atomic)")
	cmd.Flags().IntVar(&cmder.importance, "importance", 0, "Importance 1-100")
	cmd.Flags().IntVar(&cmder.confidence, "confidence", -1, "Confidence 0-100")
	cmd.Flags().StringVar(&cmder.key, "key", "", "Canonical key grouping facts about the same subject")
	cmd.Flags().StringSliceVar(&cmder.keywords, "keywords", nil, "Keywords for lexical recall")
	cmd.Flags().StringVar(&cmder.temporal, "temporal", "", "Free-text timing note")
	cmd.Flags().StringVar(&cmder.source, "source", "manual", "Where the fact came from")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *addCommander) run(cmd *cobra.Command, content string) error {
	cl, configDir, err := loadClient(cmd, c.apiTarget)
	if err != nil {
		return err
	}
	c.profileID, err = resolveProfile(c.profileID, configDir)
	if err != nil {
		return err
	}

	req := api.PutFactRequest{
		ProfileID:       c.profileID,
		Content:         content,
		Type:            c.factType,
		Lane:            c.lane,
		CanonicalKey:    c.key,
		Keywords:        c.keywords,
		TemporalContext: c.temporal,
		Source:          c.source,
	}
	if c.importance > 0 {
		req.Importance = &c.importance
	}
	if c.confidence >= 0 {
		req.Confidence = &c.confidence
	}

	var fact memory.Fact
	if err := cl.do(cmd.Context(), http.MethodPost, "/v1/facts", nil, req, &fact); err != nil {
		return err
	}

	fmt.Printf("\n  %s Added fact\n\n", cliui.SuccessMark)
	printFact(&fact)
	fmt.Println()
	return nil
}
