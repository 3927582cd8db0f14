// Package api provides the HTTP API server and handlers for postsmith.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/works-s/postsmith/internal/backup"
	"github.com/works-s/postsmith/internal/credential"
	"github.com/works-s/postsmith/internal/metrics"
	"github.com/works-s/postsmith/internal/ratelimit"
	"github.com/works-s/postsmith/internal/service"
	"github.com/works-s/postsmith/internal/sse"
	"github.com/works-s/postsmith/internal/store"
)

// Services groups the business services used by the API server.
type Services struct {
	Generation *service.GenerationService
	Workspace  *service.WorkspaceService
	Schedule   *service.ScheduleService
	History    *service.HistoryService
	Credential *credential.Vault
	Backups    *backup.BackupService
	Restores   *backup.RestoreService
}

// IndexStats reports the size of the history search index.
type IndexStats interface {
	DocumentCount() (uint64, error)
}

// Deps holds the infrastructure the server reports on or mounts directly.
type Deps struct {
	Store       store.Pinger
	Index       IndexStats
	SSEManager  *sse.Manager
	Metrics     *metrics.Metrics
	Limiter     *ratelimit.KeyedRateLimiter
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	store      store.Pinger
	index      IndexStats
	sseManager *sse.Manager
	metrics    *metrics.Metrics
	limiter    *ratelimit.KeyedRateLimiter
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
	startedAt  time.Time
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, deps Deps) *Server {
	s := &Server{
		services:   services,
		store:      deps.Store,
		index:      deps.Index,
		sseManager: deps.SSEManager,
		metrics:    deps.Metrics,
		limiter:    deps.Limiter,
		router:     chi.NewRouter(),
		logger:     deps.Logger,
		startedAt:  time.Now(),
	}

	s.setupMiddleware(deps.CORSOrigins)

	humaConfig := huma.DefaultConfig("Works-S Threads Post API", "1.0.0")
	humaConfig.Info.Description = "Generates Threads posts for an air-conditioner cleaning business in Nagano."
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, used by tests and OpenAPI dumps.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	if len(origins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", apiKeyHeader},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerCatalogRoutes()
	s.registerCredentialRoutes()
	s.registerWorkspaceRoutes()
	s.registerHistoryRoutes()
	s.registerScheduleRoutes()
	s.registerProxyRoutes()
	if s.services.Backups != nil && s.services.Restores != nil {
		s.registerBackupRoutes()
	}

	if s.sseManager != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.sseManager, s.logger).ServeHTTP)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
