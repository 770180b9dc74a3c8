package api

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/nickyai/memex/pkg/contradiction"
	"github.com/nickyai/memex/pkg/indexer"
	"github.com/nickyai/memex/pkg/retrieval"
	"github.com/nickyai/memex/pkg/storage"
	"github.com/nickyai/memex/pkg/timeline"
)

// Deps are the engine components the server fronts. Store, Ranker,
// Engine, and Auditor are required. Indexer is optional; without it new
// facts wait for a reindex sweep. MCP is optional; when set it is
// mounted at /mcp.
type Deps struct {
	Store   storage.Driver
	Ranker  *retrieval.Ranker
	Engine  *contradiction.Engine
	Auditor *timeline.Auditor
	Indexer *indexer.Pool
	MCP     http.Handler
}

// Server is the HTTP API server for the memex memory engine.
type Server struct {
	config Config
	store  storage.Driver
	ranker *retrieval.Ranker
	engine *contradiction.Engine
	audit  *timeline.Auditor
	pool   *indexer.Pool
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates the API server and registers its routes.
func NewServer(config Config, deps Deps, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		store:  deps.Store,
		ranker: deps.Ranker,
		engine: deps.Engine,
		audit:  deps.Auditor,
		pool:   deps.Indexer,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	app.Post("/v1/facts", s.handlePutFact)
	app.Get("/v1/facts", s.handleListFacts)
	app.Get("/v1/facts/:id", s.handleGetFact)
	app.Post("/v1/facts/:id/boost", s.handleBoostFact)
	app.Post("/v1/facts/:id/deprecate", s.handleDeprecateFact)
	app.Post("/v1/facts/:id/protect", s.handleProtectFact)

	app.Get("/v1/recall", s.handleRecall)

	app.Post("/v1/contradictions/scan", s.handleContradictionScan)
	app.Post("/v1/contradictions/resolve", s.handleContradictionResolve)
	app.Post("/v1/contradictions/dismiss", s.handleContradictionDismiss)

	app.Post("/v1/timeline/audit", s.handleTimelineAudit)

	app.Post("/v1/events", s.handlePutEvent)
	app.Get("/v1/events", s.handleListEvents)
	app.Post("/v1/events/:id/facts", s.handleLinkFact)

	app.Get("/v1/stats", s.handleStats)

	if deps.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(deps.MCP))
	}

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
