package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nickyai/memex/pkg/memory"
)

var (
	scanToolName    = "contradiction_scan"
	scanDescription = "Scan a profile's active facts for contradictions. Groups facts that assert conflicting things about the same subject, names a primary per group, and returns curation suggestions."
)

// ScanInput represents the input arguments for the contradiction_scan tool.
type ScanInput struct {
	ProfileID string `json:"profile_id" jsonschema:"the persona profile to scan for contradictory facts"`
}

// ScanOutput represents the structured output of a contradiction scan.
type ScanOutput struct {
	ProfileID      string                      `json:"profile_id"`
	Groups         []memory.ContradictionGroup `json:"groups"`
	Count          int                         `json:"count"`
	Suggestions    []memory.SuggestionEnvelope `json:"suggestions,omitempty"`
	ClassifierNote string                      `json:"classifier_note,omitempty"`
}

// handleScan processes a contradiction scan request via MCP.
func (s *Server) handleScan(ctx context.Context, _ *mcp.CallToolRequest, input ScanInput) (*mcp.CallToolResult, ScanOutput, error) {
	if input.ProfileID == "" {
		return toolError("profile_id is required"), ScanOutput{}, nil
	}

	result, err := s.config.Engine.Scan(ctx, input.ProfileID)
	if err != nil {
		s.config.Logger.Error("MCP contradiction scan failed", "error", err)
		return toolError(fmt.Sprintf("Contradiction scan failed: %v", err)), ScanOutput{}, nil
	}

	groups := result.Groups
	if groups == nil {
		groups = []memory.ContradictionGroup{}
	}

	suggestions, err := memory.WrapSuggestions(result.Suggestions)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize suggestions: %v", err)), ScanOutput{}, nil
	}

	output := ScanOutput{
		ProfileID:      input.ProfileID,
		Groups:         groups,
		Count:          len(groups),
		Suggestions:    suggestions,
		ClassifierNote: result.ClassifierNote,
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), ScanOutput{}, nil
	}

	return toolResult(string(jsonBytes)), output, nil
}
