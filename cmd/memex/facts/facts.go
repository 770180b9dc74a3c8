// Package factscmder provides the facts command family: add, inspect,
// curate, and export persona facts.
package factscmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/dotdir"
	"github.com/nickyai/memex/pkg/memory"
)

const factsLongDesc string = `Work with persona facts.

Most subcommands talk to a running memex API server (see client.api_target);
"export" opens the configured fact store directly so it works offline.

Examples:
  memex facts add "grew up in Portland" --lane canon --importance 80
  memex facts get 4f1f2f...
  memex facts list --lane rumor
  memex facts boost 4f1f2f...
  memex facts export --format csv > facts.csv`

const factsShortDesc string = "Add, inspect, curate, and export facts"

func NewFactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: factsShortDesc,
		Long:  factsLongDesc,
	}

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCurateCmd("boost", "Raise a fact's confidence one rung up the ladder"))
	cmd.AddCommand(newCurateCmd("deprecate", "Retire a fact so it never surfaces again"))
	cmd.AddCommand(newCurateCmd("protect", "Pin a fact as ground truth (one-way)"))
	cmd.AddCommand(newExportCmd())

	return cmd
}

// client is a minimal JSON client for the memex API shared by the facts,
// events, contradictions, and audit commands' request helpers.
type client struct {
	target string
}

// loadClient resolves the API target from the --api-target flag or the
// persistent config, mirroring the flag-over-file precedence everywhere.
func loadClient(cmd *cobra.Command, apiTarget string) (client, string, error) {
	configDir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return client{}, "", fmt.Errorf("could not get config-dir flag: %w", err)
	}

	if !cmd.Flags().Changed("api-target") {
		cfger, err := config.NewConfiger(configDir)
		if err != nil {
			return client{}, "", fmt.Errorf("loading config: %w", err)
		}
		cfg, err := cfger.LoadConfig()
		if err != nil {
			return client{}, "", fmt.Errorf("loading config: %w", err)
		}
		apiTarget = cfg.Client.APITarget
	}

	return client{target: apiTarget}, configDir, nil
}

// do sends one JSON request and decodes the response into out (when
// non-nil). Non-2xx responses surface the server's error body.
func (cl client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	u, err := url.Parse(cl.target)
	if err != nil {
		return fmt.Errorf("invalid API target URL: %w", err)
	}
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to memex API at %s: %w", cl.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func resolveProfile(flagValue, configDir string) (string, error) {
	return dotdir.NewManager().ResolveProfile(flagValue, configDir)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printFact renders one fact with the shared CLI styles.
func printFact(fact *memory.Fact) {
	status := string(fact.Status)
	if fact.Protected {
		status += ", protected"
	}

	fmt.Printf("  %s %s\n",
		cliui.NameStyle.Render(fact.ID),
		cliui.DimStyle.Render(fmt.Sprintf("(%s/%s, %s)", fact.Lane, fact.Type, status)),
	)
	fmt.Printf("    %s\n", cliui.ValueStyle.Render(fact.Content))
	fmt.Printf("    %s\n",
		cliui.DimStyle.Render(fmt.Sprintf("importance %d  confidence %d  support %d",
			fact.Importance, fact.Confidence, fact.SupportCount)),
	)
	if fact.CanonicalKey != "" {
		fmt.Printf("    %s %s\n", cliui.KeyStyle.Render("key:"), cliui.ValueStyle.Render(fact.CanonicalKey))
	}
	if fact.TemporalContext != "" {
		fmt.Printf("    %s %s\n", cliui.KeyStyle.Render("temporal:"), cliui.DimStyle.Render(fact.TemporalContext))
	}
}
