package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/nickyai/memex/pkg/memory"
	"github.com/nickyai/memex/pkg/storage"
)

// ErrorResponse is the JSON error envelope returned by every handler.
type ErrorResponse struct {
	Error string `json:"error"`
}

// fail maps engine errors onto HTTP statuses: missing records are 404,
// protection and audit-contention conflicts are 409, everything else is
// a logged 500.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	switch {
	case storage.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, memory.ErrProtectedFact):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, memory.ErrAuditInProgress):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// PutFactRequest creates or replaces a fact. Omitted numeric fields fall
// back to the fact defaults; out-of-range values are clamped, not
// rejected.
type PutFactRequest struct {
	ID              string   `json:"id,omitempty"`
	ProfileID       string   `json:"profile_id"`
	Content         string   `json:"content"`
	Type            string   `json:"type,omitempty"`
	Lane            string   `json:"lane,omitempty"`
	Importance      *int     `json:"importance,omitempty"`
	Confidence      *int     `json:"confidence,omitempty"`
	CanonicalKey    string   `json:"canonical_key,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	TemporalContext string   `json:"temporal_context,omitempty"`
	Source          string   `json:"source,omitempty"`
}

// handlePutFact creates a fact (or replaces one when an ID is supplied)
// and queues it for background embedding.
func (s *Server) handlePutFact(c *fiber.Ctx) error {
	var req PutFactRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ProfileID == "" {
		return badRequest(c, "profile_id is required")
	}
	if req.Content == "" {
		return badRequest(c, "content is required")
	}
	if req.Type != "" && !memory.ValidFactType(req.Type) {
		return badRequest(c, "unknown fact type: "+req.Type)
	}
	if req.Lane != "" && !memory.ValidLane(req.Lane) {
		return badRequest(c, "unknown lane: "+req.Lane)
	}

	fact := memory.NewFact(req.ProfileID, req.Content)
	if req.ID != "" {
		fact.ID = req.ID
	}
	if req.Type != "" {
		fact.Type = memory.FactType(req.Type)
	}
	if req.Lane != "" {
		fact.Lane = memory.Lane(req.Lane)
	}
	if req.Importance != nil {
		fact.Importance = *req.Importance
	}
	if req.Confidence != nil {
		fact.Confidence = *req.Confidence
	}
	fact.CanonicalKey = req.CanonicalKey
	fact.Keywords = req.Keywords
	fact.TemporalContext = req.TemporalContext
	fact.Source = req.Source
	fact.Normalize()

	if err := s.store.PutFact(c.Context(), fact); err != nil {
		return s.fail(c, err)
	}

	if s.pool != nil {
		s.pool.Enqueue(fact)
	}

	return c.Status(fiber.StatusCreated).JSON(fact)
}

// handleGetFact returns a single fact by ID.
func (s *Server) handleGetFact(c *fiber.Ctx) error {
	fact, err := s.store.GetFact(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fact)
}

// handleListFacts returns facts filtered by profile, lane, and status.
func (s *Server) handleListFacts(c *fiber.Ctx) error {
	profileID := c.Query("profile_id")
	if profileID == "" {
		return badRequest(c, "profile_id parameter is required")
	}

	q := storage.FactQuery{
		ProfileID: profileID,
		Limit:     c.QueryInt("limit"),
	}

	if lane := c.Query("lane"); lane != "" {
		if !memory.ValidLane(lane) {
			return badRequest(c, "unknown lane: "+lane)
		}
		q.Lane = memory.Lane(lane)
	}
	if status := c.Query("status"); status != "" {
		if !memory.ValidStatus(status) {
			return badRequest(c, "unknown status: "+status)
		}
		q.Statuses = []memory.Status{memory.Status(status)}
	}

	facts, err := s.store.ListFacts(c.Context(), q)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"count": len(facts),
		"facts": facts,
	})
}

// handleBoostFact steps a fact's confidence up the boost ladder.
func (s *Server) handleBoostFact(c *fiber.Ctx) error {
	fact, err := s.engine.Boost(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fact)
}

// handleDeprecateFact retires a fact.
func (s *Server) handleDeprecateFact(c *fiber.Ctx) error {
	fact, err := s.engine.Deprecate(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fact)
}

// handleProtectFact pins a fact as ground truth.
func (s *Server) handleProtectFact(c *fiber.Ctx) error {
	fact, err := s.engine.Protect(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fact)
}

// PutEventRequest creates a timeline event.
type PutEventRequest struct {
	ProfileID     string `json:"profile_id"`
	CanonicalName string `json:"canonical_name"`
	EventDate     string `json:"event_date,omitempty"`
	Description   string `json:"description,omitempty"`
}

// handlePutEvent creates a timeline event.
func (s *Server) handlePutEvent(c *fiber.Ctx) error {
	var req PutEventRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ProfileID == "" {
		return badRequest(c, "profile_id is required")
	}
	if req.CanonicalName == "" {
		return badRequest(c, "canonical_name is required")
	}

	event := memory.NewEvent(req.ProfileID, req.CanonicalName)
	event.EventDate = req.EventDate
	event.Description = req.Description

	if err := s.store.PutEvent(c.Context(), event); err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

// handleListEvents returns all events for a profile.
func (s *Server) handleListEvents(c *fiber.Ctx) error {
	profileID := c.Query("profile_id")
	if profileID == "" {
		return badRequest(c, "profile_id parameter is required")
	}

	events, err := s.store.ListEvents(c.Context(), profileID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"count":  len(events),
		"events": events,
	})
}

// LinkFactRequest links a fact to an event.
type LinkFactRequest struct {
	FactID string `json:"fact_id"`
}

// handleLinkFact links a fact to an event. Linking twice is a no-op.
func (s *Server) handleLinkFact(c *fiber.Ctx) error {
	var req LinkFactRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.FactID == "" {
		return badRequest(c, "fact_id is required")
	}

	// Copy the param: fiber's zero-allocation strings are only valid for
	// the life of the request, and the store retains this ID as a map key.
	eventID := utils.CopyString(c.Params("id"))
	if err := s.store.LinkFact(c.Context(), eventID, req.FactID); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"event_id": eventID, "fact_id": req.FactID})
}

// handleStats returns fact and event counts for a profile.
func (s *Server) handleStats(c *fiber.Ctx) error {
	profileID := c.Query("profile_id")
	if profileID == "" {
		return badRequest(c, "profile_id parameter is required")
	}

	stats, err := s.store.Stats(c.Context(), profileID)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(stats)
}
