package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nickyai/memex/pkg/memory"
)

// ScanRequest runs a contradiction scan. TagGroups persists the detected
// groups onto their member facts so they can be dismissed later.
type ScanRequest struct {
	ProfileID string `json:"profile_id"`
	TagGroups bool   `json:"tag_groups,omitempty"`
}

// ScanResponse is the outcome of a contradiction scan. Suggestions ride
// in their tagged envelope form so clients can switch on kind.
type ScanResponse struct {
	Groups         []memory.ContradictionGroup `json:"groups"`
	Suggestions    []memory.SuggestionEnvelope `json:"suggestions,omitempty"`
	ClassifierNote string                      `json:"classifier_note,omitempty"`
	Tagged         int                         `json:"tagged,omitempty"`
}

// handleContradictionScan handles POST /v1/contradictions/scan.
func (s *Server) handleContradictionScan(c *fiber.Ctx) error {
	var req ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ProfileID == "" {
		return badRequest(c, "profile_id is required")
	}

	result, err := s.engine.Scan(c.Context(), req.ProfileID)
	if err != nil {
		return s.fail(c, err)
	}

	suggestions, err := memory.WrapSuggestions(result.Suggestions)
	if err != nil {
		return s.fail(c, err)
	}

	resp := ScanResponse{
		Groups:         result.Groups,
		Suggestions:    suggestions,
		ClassifierNote: result.ClassifierNote,
	}
	if resp.Groups == nil {
		resp.Groups = []memory.ContradictionGroup{}
	}

	if req.TagGroups {
		for _, group := range result.Groups {
			if err := s.engine.TagGroup(c.Context(), group); err != nil {
				return s.fail(c, err)
			}
			resp.Tagged++
		}
	}

	return c.JSON(resp)
}

// ResolveRequest resolves a contested pair in the winner's favor.
type ResolveRequest struct {
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
}

// handleContradictionResolve handles POST /v1/contradictions/resolve.
func (s *Server) handleContradictionResolve(c *fiber.Ctx) error {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.WinnerID == "" || req.LoserID == "" {
		return badRequest(c, "winner_id and loser_id are required")
	}

	resolution, err := s.engine.Resolve(c.Context(), req.WinnerID, req.LoserID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(resolution)
}

// DismissRequest soft-deprioritizes every member of a persisted group.
type DismissRequest struct {
	ProfileID string `json:"profile_id"`
	GroupID   string `json:"group_id"`
}

// handleContradictionDismiss handles POST /v1/contradictions/dismiss.
func (s *Server) handleContradictionDismiss(c *fiber.Ctx) error {
	var req DismissRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.GroupID == "" {
		return badRequest(c, "group_id is required")
	}

	dismissed, err := s.engine.DismissGroup(c.Context(), req.ProfileID, req.GroupID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"group_id": req.GroupID, "dismissed": dismissed})
}
