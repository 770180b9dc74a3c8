package factscmder

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/memory"
)

type curateCommander struct {
	verb      string
	apiTarget string
}

// newCurateCmd builds one curation subcommand; boost, deprecate, and
// protect all share the same POST /v1/facts/<id>/<verb> shape.
func newCurateCmd(verb, short string) *cobra.Command {
	cmder := &curateCommander{verb: verb}

	cmd := &cobra.Command{
		Use:   verb + " <fact-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *curateCommander) run(cmd *cobra.Command, id string) error {
	cl, _, err := loadClient(cmd, c.apiTarget)
	if err != nil {
		return err
	}

	var fact memory.Fact
	if err := cl.do(cmd.Context(), http.MethodPost, "/v1/facts/"+id+"/"+c.verb, nil, nil, &fact); err != nil {
		return err
	}

	fmt.Printf("\n  %s %s applied\n\n", cliui.SuccessMark, c.verb)
	printFact(&fact)
	fmt.Println()
	return nil
}
