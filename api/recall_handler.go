package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nickyai/memex/pkg/memory"
)

// handleRecall handles GET /v1/recall requests.
// Query parameters:
//   - profile_id (required): the persona profile to recall for
//   - q: the query text; empty queries still surface mode and event facts
//   - top_k: result size (default from ranker options)
//   - mode: chat | podcast | streaming | discord
//   - heat: room energy level
//   - conversation_id: the active conversation, for recency scoring
func (s *Server) handleRecall(c *fiber.Ctx) error {
	profileID := c.Query("profile_id")
	if profileID == "" {
		return badRequest(c, "profile_id parameter is required")
	}

	mode := c.Query("mode", s.config.DefaultMode)
	if mode != "" && !memory.ValidMode(mode) {
		return badRequest(c, "unknown mode: "+mode)
	}

	rctx := memory.RetrievalContext{
		ProfileID:      profileID,
		Query:          c.Query("q"),
		ConversationID: c.Query("conversation_id"),
		Mode:           memory.Mode(mode),
		Heat:           c.QueryInt("heat", s.config.DefaultHeat),
	}

	result, err := s.ranker.Retrieve(c.Context(), rctx, c.QueryInt("top_k"))
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(result)
}
