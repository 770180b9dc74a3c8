package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nickyai/memex/pkg/timeline"
)

var (
	auditToolName    = "timeline_audit"
	auditDescription = "Audit a profile's facts against its event timeline. Flags facts whose tense contradicts where the linked event sits relative to now. Defaults to a dry run; set apply to true to demote flagged facts."
)

// AuditInput represents the input arguments for the timeline_audit tool.
type AuditInput struct {
	ProfileID string `json:"profile_id" jsonschema:"the persona profile whose timeline to audit"`
	Apply     bool   `json:"apply,omitempty" jsonschema:"apply the demotions instead of reporting only (default: false, a dry run)"`
}

// handleAudit processes a timeline audit request via MCP.
func (s *Server) handleAudit(ctx context.Context, _ *mcp.CallToolRequest, input AuditInput) (*mcp.CallToolResult, *timeline.Report, error) {
	if input.ProfileID == "" {
		return toolError("profile_id is required"), nil, nil
	}

	report, err := s.config.Auditor.Audit(ctx, timeline.Options{
		ProfileID: input.ProfileID,
		DryRun:    !input.Apply,
	})
	if err != nil {
		s.config.Logger.Error("MCP timeline audit failed", "error", err)
		return toolError(fmt.Sprintf("Timeline audit failed: %v", err)), nil, nil
	}

	jsonBytes, err := json.Marshal(report)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), nil, nil
	}

	return toolResult(string(jsonBytes)), report, nil
}
