package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nickyai/memex/pkg/timeline"
)

// AuditRequest runs a timeline audit over a profile's events.
type AuditRequest struct {
	ProfileID string `json:"profile_id"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// handleTimelineAudit handles POST /v1/timeline/audit. A second audit
// for a profile already being audited gets a 409.
func (s *Server) handleTimelineAudit(c *fiber.Ctx) error {
	var req AuditRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ProfileID == "" {
		return badRequest(c, "profile_id is required")
	}

	report, err := s.audit.Audit(c.Context(), timeline.Options{
		ProfileID: req.ProfileID,
		DryRun:    req.DryRun,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(report)
}
