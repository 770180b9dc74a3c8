package eventscmder

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/api"
	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
)

const linkShortDesc string = "Link a fact to an event"

type linkCommander struct {
	apiTarget string
}

func newLinkCmd() *cobra.Command {
	cmder := &linkCommander{}

	cmd := &cobra.Command{
		Use:   "link <event-id> <fact-id>",
		Short: linkShortDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0], args[1])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *linkCommander) run(cmd *cobra.Command, eventID, factID string) error {
	cl, _, err := loadClient(cmd, c.apiTarget)
	if err != nil {
		return err
	}

	req := api.LinkFactRequest{FactID: factID}
	if err := cl.do(cmd.Context(), http.MethodPost, "/v1/events/"+eventID+"/facts", nil, req, nil); err != nil {
		return err
	}

	fmt.Printf("\n  %s Linked %s to %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(factID),
		cliui.NameStyle.Render(eventID),
	)
	return nil
}
