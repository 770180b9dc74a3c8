package factscmder

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/memory"
)

const getShortDesc string = "Show a fact by ID"

type getCommander struct {
	apiTarget string
	jsonOut   bool
}

func newGetCmd() *cobra.Command {
	cmder := &getCommander{}

	cmd := &cobra.Command{
		Use:   "get <fact-id>",
		Short: getShortDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw JSON response")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *getCommander) run(cmd *cobra.Command, id string) error {
	cl, _, err := loadClient(cmd, c.apiTarget)
	if err != nil {
		return err
	}

	var fact memory.Fact
	if err := cl.do(cmd.Context(), http.MethodGet, "/v1/facts/"+id, nil, nil, &fact); err != nil {
		return err
	}

	if c.jsonOut {
		return printJSON(&fact)
	}

	fmt.Println()
	printFact(&fact)
	fmt.Println()
	return nil
}
