package eventscmder

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/api"
	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/memory"
)

const addShortDesc string = "Add a timeline event"

type addCommander struct {
	profileID   string
	date        string
	description string
	apiTarget   string
}

func newAddCmd() *cobra.Command {
	cmder := &addCommander{}

	cmd := &cobra.Command{
		Use:   "add <canonical-name>",
		Short: addShortDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "", "Persona profile the event belongs to")
	cmd.Flags().StringVar(&cmder.date, "date", "", "Event date (e.g. 2024-01-15)")
	cmd.Flags().StringVar(&cmder.description, "description", "", "What happened")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *addCommander) run(cmd *cobra.Command, name string) error {
	cl, configDir, err := loadClient(cmd, c.apiTarget)
	if err != nil {
		return err
	}
	c.profileID, err = resolveProfile(c.profileID, configDir)
	if err != nil {
		return err
	}

	req := api.PutEventRequest{
		ProfileID:     c.profileID,
		CanonicalName: name,
		EventDate:     c.date,
		Description:   c.description,
	}

	var event memory.Event
	if err := cl.do(cmd.Context(), http.MethodPost, "/v1/events", nil, req, &event); err != nil {
		return err
	}

	fmt.Printf("\n  %s Added event\n\n", cliui.SuccessMark)
	printEvent(&event)
	fmt.Println()
	return nil
}
