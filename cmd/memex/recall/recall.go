// Package recallcmder provides the recall command for retrieving ranked
// persona facts from a running memex API server.
package recallcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/dotdir"
	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/retrieval"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	canonStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	rumorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	contentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type recallCommander struct {
	query          string
	profileID      string
	mode           string
	heat           int
	topK           int
	conversationID string
	jsonOut        bool

	apiTarget string
	configDir string
}

const recallLongDesc string = `Recall persona memory for a conversation turn.

Sends the query to a running memex API server and prints the ranked facts
with their lane, confidence, and score breakdown. Rumor-lane facts only
surface when the mode or heat puts the persona on stage.

The active profile comes from --profile, falling back to the profile
selected with "memex profile use".

Examples:
  memex recall "what does nicky think of portland"
  memex recall "tour plans" --mode podcast --heat 80
  memex recall "hometown" --profile nicky --json`

const recallShortDesc string = "Recall persona memory"

func NewRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: recallShortDesc,
		Long:  recallLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.loadDefaults(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "", "Persona profile to recall for")
	cmd.Flags().StringVarP(&cmder.mode, "mode", "m", "", "Performance surface (chat, podcast, streaming, discord)")
	cmd.Flags().IntVar(&cmder.heat, "heat", 0, "Room energy level (10-100); above 70 unlocks rumors")
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "Number of facts to return")
	cmd.Flags().StringVar(&cmder.conversationID, "conversation", "", "Conversation ID for recency scoring")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw JSON response")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *recallCommander) loadDefaults(cmd *cobra.Command) error {
	var err error
	c.configDir, err = cmd.Flags().GetString("config-dir")
	if err != nil {
		return fmt.Errorf("could not get config-dir flag: %w", err)
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cmd.Flags().Changed("api-target") {
		c.apiTarget = cfg.Client.APITarget
	}
	if c.mode == "" {
		c.mode = cfg.Retrieval.DefaultMode
	}
	if c.heat == 0 {
		c.heat = cfg.Retrieval.DefaultHeat
	}

	c.profileID, err = dotdir.NewManager().ResolveProfile(c.profileID, c.configDir)
	return err
}

func (c *recallCommander) run(ctx context.Context) error {
	recallURL, err := url.Parse(c.apiTarget)
	if err != nil {
		return fmt.Errorf("invalid API target URL: %w", err)
	}
	recallURL.Path = "/v1/recall"

	q := recallURL.Query()
	q.Set("profile_id", c.profileID)
	q.Set("q", c.query)
	q.Set("mode", c.mode)
	q.Set("heat", strconv.Itoa(c.heat))
	if c.topK > 0 {
		q.Set("top_k", strconv.Itoa(c.topK))
	}
	if c.conversationID != "" {
		q.Set("conversation_id", c.conversationID)
	}
	recallURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recallURL.String(), nil)
	if err != nil {
		return fmt.Errorf("creating recall request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to memex API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("recall request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	if c.jsonOut {
		fmt.Println(string(body))
		return nil
	}

	var result retrieval.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse recall response: %w", err)
	}

	c.printResult(&result)
	return nil
}

func (c *recallCommander) printResult(result *retrieval.Result) {
	fmt.Fprintf(os.Stdout, "\n%s %s %s\n\n",
		headerStyle.Render("Recall for:"),
		canonStyle.Render(fmt.Sprintf("%q", c.query)),
		dimStyle.Render(fmt.Sprintf("(profile %s, mode %s, heat %d)", c.profileID, c.mode, c.heat)),
	)

	if len(result.Facts) == 0 {
		fmt.Println(dimStyle.Render("  No facts surfaced."))
		fmt.Println()
		return
	}

	for i, ranked := range result.Facts {
		c.printFact(i+1, ranked)
	}

	if result.Rejected > 0 {
		fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("%d candidates held back by the lane policy", result.Rejected)))
	}
	if len(result.Degraded) > 0 {
		fmt.Printf("  %s\n", dimStyle.Render("degraded branches: "+strings.Join(result.Degraded, ", ")))
	}
	fmt.Println()
}

func (c *recallCommander) printFact(rank int, ranked retrieval.Ranked) {
	lane := canonStyle.Render("[canon]")
	if ranked.Lane == memory.LaneRumor {
		lane = rumorStyle.Render("[rumor]")
	}

	content := strings.ReplaceAll(ranked.Content, "\n", " ")
	if len(content) > 80 {
		content = content[:77] + "..."
	}

	fmt.Printf("  %s %s %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		lane,
		contentStyle.Render(content),
	)
	fmt.Printf("     %s\n",
		scoreStyle.Render(fmt.Sprintf("score %.3f  confidence %d  importance %d  via %s",
			ranked.Breakdown.Final,
			ranked.DisplayConfidence,
			ranked.Importance,
			strings.Join(ranked.Breakdown.Via, "+"),
		)),
	)
}
