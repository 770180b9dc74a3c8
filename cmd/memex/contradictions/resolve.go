package contradictionscmder

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/api"
	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/contradiction"
)

const resolveShortDesc string = "Resolve a contested pair in the winner's favor"

type resolveCommander struct {
	apiTarget string
}

func newResolveCmd() *cobra.Command {
	cmder := &resolveCommander{}

	cmd := &cobra.Command{
		Use:   "resolve <winner-id> <loser-id>",
		Short: resolveShortDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0], args[1])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *resolveCommander) run(cmd *cobra.Command, winnerID, loserID string) error {
	cl, _, err := loadClient(cmd, c.apiTarget)
	if err != nil {
		return err
	}

	req := api.ResolveRequest{WinnerID: winnerID, LoserID: loserID}

	var resolution contradiction.Resolution
	if err := cl.do(cmd.Context(), http.MethodPost, "/v1/contradictions/resolve", nil, req, &resolution); err != nil {
		return err
	}

	fmt.Printf("\n  %s Resolved\n\n", cliui.SuccessMark)
	fmt.Printf("  %s %s %s\n",
		cliui.KeyStyle.Render("winner:"),
		cliui.NameStyle.Render(resolution.Winner.ID),
		cliui.DimStyle.Render(fmt.Sprintf("confidence %d", resolution.Winner.Confidence)),
	)
	if resolution.WinnerBoosted {
		fmt.Printf("    %s\n", cliui.DimStyle.Render("confidence boosted: sole survivor of the contested set"))
	}
	fmt.Printf("  %s %s %s\n",
		cliui.KeyStyle.Render("loser:"),
		cliui.NameStyle.Render(resolution.Loser.ID),
		cliui.DimStyle.Render(string(resolution.Loser.Status)),
	)
	fmt.Println()
	return nil
}
