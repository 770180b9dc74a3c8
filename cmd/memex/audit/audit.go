// Package auditcmder provides the audit command for running the temporal
// auditor over a profile's timeline.
package auditcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nickyai/memex/api"
	"github.com/nickyai/memex/pkg/cliui"
	"github.com/nickyai/memex/pkg/config"
	"github.com/nickyai/memex/pkg/dotdir"
	"github.com/nickyai/memex/pkg/timeline"
	"github.com/nickyai/memex/pkg/utils"
)

const auditLongDesc string = `Audit a profile's timeline for stale facts.

Walks every dated event and flags linked facts whose tense contradicts the
event's position in time, like a fact still saying an album "will drop"
months after the release date passed. Flagged facts are marked ambiguous
and docked confidence; start with --dry-run to preview.

Examples:
  memex audit --dry-run
  memex audit --profile nicky`

const auditShortDesc string = "Audit a profile's timeline for stale facts"

type auditCommander struct {
	profileID string
	dryRun    bool
	apiTarget string
	jsonOut   bool
}

func NewAuditCmd() *cobra.Command {
	cmder := &auditCommander{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: auditShortDesc,
		Long:  auditLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", "", "Persona profile to audit")
	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "Report what would change without writing")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw JSON response")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "memex API server URL")

	return cmd
}

func (c *auditCommander) run(cmd *cobra.Command) error {
	configDir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return fmt.Errorf("could not get config-dir flag: %w", err)
	}

	if !cmd.Flags().Changed("api-target") {
		cfger, err := config.NewConfiger(configDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg, err := cfger.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		c.apiTarget = cfg.Client.APITarget
	}

	c.profileID, err = dotdir.NewManager().ResolveProfile(c.profileID, configDir)
	if err != nil {
		return err
	}

	report, err := c.requestAudit(cmd.Context())
	if err != nil {
		return err
	}

	if c.jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	c.printReport(report)
	return nil
}

func (c *auditCommander) requestAudit(ctx context.Context) (*timeline.Report, error) {
	payload, err := json.Marshal(api.AuditRequest{ProfileID: c.profileID, DryRun: c.dryRun})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.apiTarget, "/")+"/v1/timeline/audit", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to memex API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audit request failed (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var report timeline.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to parse audit report: %w", err)
	}
	return &report, nil
}

func (c *auditCommander) printReport(report *timeline.Report) {
	label := "Timeline audit"
	if report.DryRun {
		label += " (dry run)"
	}
	fmt.Printf("\n  %s %s\n\n",
		cliui.KeyStyle.Render(label),
		cliui.DimStyle.Render(fmt.Sprintf("profile %s, %d events, %d facts inspected",
			report.ProfileID, report.InspectedEvents, report.InspectedFacts)),
	)

	if len(report.Flagged) == 0 {
		fmt.Printf("  %s Timeline is consistent.\n\n", cliui.SuccessMark)
		return
	}

	for _, flag := range report.Flagged {
		c.printFlag(flag)
	}

	for _, skip := range report.SkippedEvents {
		fmt.Printf("  %s\n", cliui.DimStyle.Render(
			fmt.Sprintf("skipped %s: %s", skip.EventID, skip.Reason)))
	}

	fmt.Printf("\n  %d flagged, %d updates applied\n\n", len(report.Flagged), report.UpdatesApplied)
}

func (c *auditCommander) printFlag(flag timeline.Flag) {
	mark := cliui.FailMark
	if flag.Applied {
		mark = cliui.SuccessMark
	}

	fmt.Printf("  %s %s %s\n",
		mark,
		cliui.NameStyle.Render(flag.FactID),
		cliui.DimStyle.Render(fmt.Sprintf("(%s, event %q)", flag.Conflict, flag.EventName)),
	)
	fmt.Printf("    %s\n", cliui.ValueStyle.Render(utils.Truncate(flag.Excerpt, 80)))
	fmt.Printf("    %s\n", cliui.DimStyle.Render(
		fmt.Sprintf("%s -> %s  confidence %d -> %d",
			flag.OldStatus, flag.NewStatus, flag.OldConfidence, flag.NewConfidence)))
	if flag.SkipReason != "" {
		fmt.Printf("    %s\n", cliui.DimStyle.Render("not applied: "+flag.SkipReason))
	}
}
