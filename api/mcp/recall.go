package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/retrieval"
)

var (
	recallToolName    = "memory_recall"
	recallDescription = "Recall persona memory relevant to a query. Returns ranked facts with per-fact score breakdowns, filtered by the lane policy for the given mode and heat level."
)

// RecallInput represents the input arguments for the memory_recall tool.
type RecallInput struct {
	ProfileID string `json:"profile_id" jsonschema:"the persona profile to recall memory for"`
	Query     string `json:"query" jsonschema:"the conversation text to find relevant facts for"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"number of facts to return (default: 8)"`
	Mode      string `json:"mode,omitempty" jsonschema:"performance surface: chat, podcast, streaming, or discord (default: chat)"`
	Heat      int    `json:"heat,omitempty" jsonschema:"room energy level from 10 to 100; above 70 unlocks rumor-lane facts"`
}

// RecallOutput represents the structured output of a memory recall.
type RecallOutput struct {
	ProfileID string             `json:"profile_id"`
	Query     string             `json:"query"`
	Facts     []retrieval.Ranked `json:"facts"`
	Count     int                `json:"count"`
	Rejected  int                `json:"rejected"`
	Degraded  []string           `json:"degraded,omitempty"`
}

// handleRecall processes a memory recall request via MCP.
func (s *Server) handleRecall(ctx context.Context, _ *mcp.CallToolRequest, input RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	if input.ProfileID == "" {
		return toolError("profile_id is required"), RecallOutput{}, nil
	}
	if input.Mode != "" && !memory.ValidMode(input.Mode) {
		return toolError(fmt.Sprintf("unknown mode: %q", input.Mode)), RecallOutput{}, nil
	}

	s.config.Logger.Debug("MCP recall request",
		"profile_id", input.ProfileID,
		"query", input.Query,
		"top_k", input.TopK,
	)

	result, err := s.config.Ranker.Retrieve(ctx, memory.RetrievalContext{
		ProfileID: input.ProfileID,
		Query:     input.Query,
		Mode:      memory.Mode(input.Mode),
		Heat:      input.Heat,
	}, input.TopK)
	if err != nil {
		s.config.Logger.Error("MCP recall failed", "error", err)
		return toolError(fmt.Sprintf("Recall failed: %v", err)), RecallOutput{}, nil
	}

	facts := result.Facts
	if facts == nil {
		facts = []retrieval.Ranked{}
	}

	output := RecallOutput{
		ProfileID: input.ProfileID,
		Query:     input.Query,
		Facts:     facts,
		Count:     len(facts),
		Rejected:  result.Rejected,
		Degraded:  result.Degraded,
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), RecallOutput{}, nil
	}

	return toolResult(string(jsonBytes)), output, nil
}
