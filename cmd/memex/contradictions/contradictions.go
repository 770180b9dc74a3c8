// Package contradictionscmder provides the contradictions command family:
// scanning a profile for contested facts and resolving or dismissing the
// detected groups.
package contradictionscmder

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

	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/dotdir"
)

const contradictionsLongDesc string = `Find and settle contested facts.

"scan" groups active facts that claim the same canonical subject (plus
whatever the configured classifier flags); "resolve" picks a winner from
a contested pair; "dismiss" mutes a persisted group that turned out to be
a false positive.

Examples:
  memex contradictions scan --tag
  memex contradictions resolve <winner-id> <loser-id>
  memex contradictions dismiss --group <group-id>`

const contradictionsShortDesc string = "Scan for and settle contested facts"

func NewContradictionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contradictions",
		Short: contradictionsShortDesc,
		Long:  contradictionsLongDesc,
	}

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newDismissCmd())

	return cmd
}

type client struct {
	target string
}

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
