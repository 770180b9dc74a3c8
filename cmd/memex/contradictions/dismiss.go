package contradictionscmder

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/api"
	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
)

const dismissShortDesc string = "Dismiss a persisted contradiction group"

type dismissCommander struct {
	profileID string
	groupID   string
	apiTarget string
}

func newDismissCmd() *cobra.Command {
	cmder := &dismissCommander{}

	cmd := &cobra.Command{
		Use:   "dismiss",
		Short: dismissShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "", "Persona profile the group belongs to")
	cmd.Flags().StringVar(&cmder.groupID, "group", "", "Group ID to dismiss (from a tagged scan)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")
	cmd.MarkFlagRequired("group")

	return cmd
}

func (c *dismissCommander) run(cmd *cobra.Command) error {
	cl, configDir, err := loadClient(cmd, c.apiTarget)
	if err != nil {
		return err
	}
	c.profileID, err = resolveProfile(c.profileID, configDir)
	if err != nil {
		return err
	}

	req := api.DismissRequest{ProfileID: c.profileID, GroupID: c.groupID}

	var resp struct {
		GroupID   string `json:"group_id"`
		Dismissed int    `json:"dismissed"`
	}
	if err := cl.do(cmd.Context(), http.MethodPost, "/v1/contradictions/dismiss", nil, req, &resp); err != nil {
		return err
	}

	fmt.Printf("\n  %s Dismissed group %s (%d facts muted)\n\n",
		cliui.SuccessMark, cliui.NameStyle.Render(resp.GroupID), resp.Dismissed)
	return nil
}
