package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/heron/internal/analysis"
	"github.com/opensource-finance/heron/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *analysis.Engine, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Claims datasets
		r.Post("/datasets", handler.CreateDataset)
		r.Get("/datasets", handler.ListDatasets)
		r.Get("/datasets/{id}", handler.GetDataset)

		// Analysis
		r.Post("/datasets/{id}/analyze/{operation}", handler.Analyze)
		r.Post("/analyze/{operation}", handler.AnalyzeInline)
		r.Get("/datasets/{id}/analyses", handler.ListAnalyses)
		r.Get("/analyses/{id}", handler.GetAnalysis)
		r.Get("/operations", handler.ListOperations)

		// Custom fraud rule management
		r.Get("/fraud-rules", handler.ListFraudRules)
		r.Get("/fraud-rules/{id}", handler.GetFraudRule)
		r.Post("/fraud-rules", handler.CreateFraudRule)
		r.Delete("/fraud-rules/{id}", handler.DeleteFraudRule)
		r.Post("/fraud-rules/reload", handler.ReloadFraudRules)
	})

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
