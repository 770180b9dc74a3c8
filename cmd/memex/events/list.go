package eventscmder

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/memory"
)

const listShortDesc string = "List a profile's timeline events"

type listCommander struct {
	profileID string
	apiTarget string
	jsonOut   bool
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "", "Persona profile to list")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw JSON response")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *listCommander) run(cmd *cobra.Command) error {
	cl, configDir, err := loadClient(cmd, c.apiTarget)
	if err != nil {
		return err
	}
	c.profileID, err = resolveProfile(c.profileID, configDir)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("profile_id", c.profileID)

	var listing struct {
		Count  int             `json:"count"`
		Events []*memory.Event `json:"events"`
	}
	if err := cl.do(cmd.Context(), http.MethodGet, "/v1/events", q, nil, &listing); err != nil {
		return err
	}

	if c.jsonOut {
		data, err := json.MarshalIndent(listing, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if listing.Count == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No events found."))
		return nil
	}

	fmt.Printf("\n  %s\n\n", cliui.KeyStyle.Render(fmt.Sprintf("%d events for %s", listing.Count, c.profileID)))
	for _, event := range listing.Events {
		printEvent(event)
		fmt.Println()
	}
	return nil
}
