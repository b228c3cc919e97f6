package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/algolend/kestrel/internal/domain"
	"github.com/algolend/kestrel/internal/engine"
	"github.com/algolend/kestrel/internal/flags"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, pipeline *engine.Pipeline, store domain.RecordStore, cache domain.Cache, bus domain.EventBus, flagEngine *flags.Engine, version string) *Server {
	handler := NewHandler(pipeline, store, cache, bus, flagEngine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Credit evaluation
	router.Post("/credit-checks", handler.Evaluate)
	router.Post("/credit-checks/async", handler.EvaluateAsync)

	// Decision retrieval
	router.Get("/credit-checks/{id}", handler.GetDecision)
	router.Get("/credit-checks/{id}/report", handler.DownloadReport)

	// Decision history
	router.Get("/users/{userID}/credit-checks", handler.ListDecisionsByUser)
	router.Get("/identities/{idNumber}/credit-checks", handler.ListDecisionsByIdentity)

	// Flag rule management
	router.Get("/flag-rules", handler.ListFlagRules)
	router.Get("/flag-rules/{id}", handler.GetFlagRule)
	router.Post("/flag-rules", handler.SaveFlagRule)
	router.Delete("/flag-rules/{id}", handler.DeleteFlagRule)
	router.Post("/flag-rules/reload", handler.ReloadFlagRules)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
