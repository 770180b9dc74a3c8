package factscmder

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/memory"
)

const listShortDesc string = "List a profile's facts"

type listCommander struct {
	profileID string
	lane      string
	status    string
	limit     int
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
	cmd.Flags().StringVar(&cmder.lane, "lane", "", "Filter by lane (canon, rumor)")
	cmd.Flags().StringVar(&cmder.status, "status", "", "Filter by status (active, deprecated, ambiguous)")
	cmd.Flags().IntVar(&cmder.limit, "limit", 0, "Maximum facts to return")
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
	if c.lane != "" {
		q.Set("lane", c.lane)
	}
	if c.status != "" {
		q.Set("status", c.status)
	}
	if c.limit > 0 {
		q.Set("limit", strconv.Itoa(c.limit))
	}

	var listing struct {
		Count int            `json:"count"`
		Facts []*memory.Fact `json:"facts"`
	}
	if err := cl.do(cmd.Context(), http.MethodGet, "/v1/facts", q, nil, &listing); err != nil {
		return err
	}

	if c.jsonOut {
		return printJSON(listing)
	}

	if listing.Count == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No facts found."))
		return nil
	}

	fmt.Printf("\n  %s\n\n", cliui.KeyStyle.Render(fmt.Sprintf("%d facts for %s", listing.Count, c.profileID)))
	for _, fact := range listing.Facts {
		printFact(fact)
		fmt.Println()
	}
	return nil
}
