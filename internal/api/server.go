// Package api exposes the fitting pipeline and optimizer as a JSON
// HTTP surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gomix/internal"
	"gomix/internal/allocator"
	"gomix/internal/config"
	"gomix/internal/pipeline"
	"gomix/ports"
)

// Server wires the router to the engine and repositories
type Server struct {
	router    *chi.Mux
	runner    *pipeline.Runner
	optimizer *allocator.Optimizer
	models    ports.ModelRepository
	plans     ports.PlanRepository
	reporter  ports.ModelReporter
	exporter  ports.PlanExporter
	engine    config.EngineConfig
	log       *internal.Logger
}

// Deps collects the server's collaborators
type Deps struct {
	Runner    *pipeline.Runner
	Optimizer *allocator.Optimizer
	Models    ports.ModelRepository
	Plans     ports.PlanRepository
	Reporter  ports.ModelReporter
	Exporter  ports.PlanExporter
	// Engine supplies server-side defaults for request fields the
	// caller leaves unset. A zero value defers to the package defaults
	// downstream.
	Engine config.EngineConfig
	Log    *internal.Logger
}

// NewServer creates the HTTP server
func NewServer(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = internal.DefaultLogger
	}
	s := &Server{
		router:    chi.NewRouter(),
		runner:    deps.Runner,
		optimizer: deps.Optimizer,
		models:    deps.Models,
		plans:     deps.Plans,
		reporter:  deps.Reporter,
		exporter:  deps.Exporter,
		engine:    deps.Engine,
		log:       deps.Log,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes registers all endpoints
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleRun)
		r.Get("/runs/{runID}/models", s.handleListRunModels)

		r.Route("/models/{modelID}", func(r chi.Router) {
			r.Get("/", s.handleGetModel)
			r.Get("/report", s.handleModelReport)
			r.Post("/optimize", s.handleOptimize)
			r.Get("/plans", s.handleListModelPlans)
		})

		r.Route("/plans/{planID}", func(r chi.Router) {
			r.Get("/", s.handleGetPlan)
			r.Get("/export", s.handleExportPlan)
		})
	})
}

// withEngineDefaults fills run request fields the caller left unset
// with the server-configured engine defaults. Explicit request values
// win; fields still zero afterwards fall back to FitConfig.WithDefaults
// in the engine.
func (s *Server) withEngineDefaults(req pipeline.RunRequest) pipeline.RunRequest {
	if req.Fit.Tolerance == 0 {
		req.Fit.Tolerance = s.engine.Tolerance
	}
	if req.Fit.MaxIterations == 0 {
		req.Fit.MaxIterations = s.engine.MaxIterations
	}
	if req.Fit.ConditionThreshold == 0 {
		req.Fit.ConditionThreshold = s.engine.ConditionThreshold
	}
	if req.Concurrency <= 0 {
		req.Concurrency = s.engine.Concurrency
	}
	return req
}

// withSearchDefaults is the optimizer-side counterpart.
func (s *Server) withSearchDefaults(cfg allocator.Config) allocator.Config {
	if cfg.Tolerance == 0 {
		cfg.Tolerance = s.engine.Tolerance
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = s.engine.MaxIterations
	}
	if cfg.Restarts == 0 {
		cfg.Restarts = s.engine.OptimizerRestarts
	}
	return cfg
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the server on the given port
func (s *Server) ListenAndServe(port string) error {
	s.log.Info("listening on :%s", port)
	return http.ListenAndServe(":"+port, s.router)
}
