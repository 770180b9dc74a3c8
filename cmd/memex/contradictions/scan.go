package contradictionscmder

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/api"
	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/memory"
)

const scanShortDesc string = "Scan a profile for contested facts"

type scanCommander struct {
	profileID string
	tag       bool
	apiTarget string
	jsonOut   bool
}

func newScanCmd() *cobra.Command {
	cmder := &scanCommander{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: scanShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "", "Persona profile to scan")
	cmd.Flags().BoolVar(&cmder.tag, "tag", false, "Persist detected groups onto their member facts")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw JSON response")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *scanCommander) run(cmd *cobra.Command) error {
	cl, configDir, err := loadClient(cmd, c.apiTarget)
	if err != nil {
		return err
	}
	c.profileID, err = resolveProfile(c.profileID, configDir)
	if err != nil {
		return err
	}

	req := api.ScanRequest{ProfileID: c.profileID, TagGroups: c.tag}

	var resp api.ScanResponse
	if err := cl.do(cmd.Context(), http.MethodPost, "/v1/contradictions/scan", nil, req, &resp); err != nil {
		return err
	}

	if c.jsonOut {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	c.printScan(&resp)
	return nil
}

func (c *scanCommander) printScan(resp *api.ScanResponse) {
	if len(resp.Groups) == 0 {
		fmt.Printf("\n  %s No contradictions found for %s\n\n",
			cliui.SuccessMark, cliui.NameStyle.Render(c.profileID))
		return
	}

	fmt.Printf("\n  %s\n\n", cliui.KeyStyle.Render(
		fmt.Sprintf("%d contested groups for %s", len(resp.Groups), c.profileID)))

	for _, group := range resp.Groups {
		subject := group.CanonicalKey
		if subject == "" {
			subject = string(group.Source)
		}
		fmt.Printf("  %s %s %s\n",
			cliui.NameStyle.Render(group.ID),
			cliui.KeyStyle.Render(subject),
			cliui.DimStyle.Render(fmt.Sprintf("(%s, %d facts)", group.Severity, len(group.FactIDs))),
		)
		if group.Explanation != "" {
			fmt.Printf("    %s\n", cliui.ValueStyle.Render(group.Explanation))
		}
		for _, id := range group.FactIDs {
			marker := " "
			if id == group.PrimaryFactID {
				marker = "*"
			}
			fmt.Printf("    %s %s\n", marker, cliui.DimStyle.Render(id))
		}
		fmt.Println()
	}

	for _, envelope := range resp.Suggestions {
		c.printSuggestion(envelope)
	}

	if resp.ClassifierNote != "" {
		fmt.Printf("  %s\n", cliui.DimStyle.Render("classifier: "+resp.ClassifierNote))
	}
	if resp.Tagged > 0 {
		fmt.Printf("  %s %d groups tagged\n", cliui.SuccessMark, resp.Tagged)
	}
	fmt.Println()
}

func (c *scanCommander) printSuggestion(envelope memory.SuggestionEnvelope) {
	suggestion, err := envelope.Unwrap()
	if err != nil {
		fmt.Printf("  %s\n", cliui.DimStyle.Render("suggestion ("+string(envelope.SuggestionKind)+")"))
		return
	}

	switch s := suggestion.(type) {
	case memory.BoostImportance:
		fmt.Printf("  %s boost importance of %s by %d\n",
			cliui.KeyStyle.Render("suggest:"), cliui.NameStyle.Render(s.FactID), s.Delta)
	case memory.AddTag:
		fmt.Printf("  %s tag %s with %q\n",
			cliui.KeyStyle.Render("suggest:"), cliui.NameStyle.Render(s.FactID), s.Tag)
	case memory.FlagForTraining:
		fmt.Printf("  %s send %s to curation (%s)\n",
			cliui.KeyStyle.Render("suggest:"), cliui.NameStyle.Render(s.FactID), s.Reason)
	default:
		fmt.Printf("  %s %s\n",
			cliui.KeyStyle.Render("suggest:"), cliui.DimStyle.Render(string(envelope.SuggestionKind)))
	}
}
