// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jobrunner/tarantula/internal/application"
	"github.com/jobrunner/tarantula/internal/config"
)

// RequestIDHeader carries the request id in requests and responses.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// Server routes requests to the application services.
type Server struct {
	router      *mux.Router
	search      *application.SearchService
	registry    *application.LayerRegistry
	health      *application.HealthService
	syncService *application.SyncService
	middleware  []mux.MiddlewareFunc
	logger      *slog.Logger
	config      config.ServerConfig
}

// Option configures optional server parts.
type Option func(*Server)

// WithSync exposes POST /api/v1/sync.
func WithSync(syncService *application.SyncService) Option {
	return func(s *Server) { s.syncService = syncService }
}

// WithMiddleware adds router middleware, e.g. metrics collection.
func WithMiddleware(mw ...mux.MiddlewareFunc) Option {
	return func(s *Server) { s.middleware = append(s.middleware, mw...) }
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg config.ServerConfig,
	search *application.SearchService,
	registry *application.LayerRegistry,
	health *application.HealthService,
	logger *slog.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		search:   search,
		registry: registry,
		health:   health,
		logger:   logger,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRoutes()
	return s
}

const apiPrefix = "/api/v1"

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	for _, mw := range s.middleware {
		r.Use(mw)
	}

	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// Legacy route, kept for existing clients.
	r.HandleFunc("/tarantula", s.handleSearch).Methods(s.methods(http.MethodGet)...)

	// API routes live on the root router: gorilla/mux answers a method
	// mismatch inside a subrouter with 404 instead of 405.
	r.HandleFunc(apiPrefix+"/search", s.handleSearch).Methods(s.methods(http.MethodGet)...)

	r.HandleFunc(apiPrefix+"/layers", s.handleListLayers).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/layers/{district}/{name}", s.handleGetLayer).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/layers/{district}/{name}/search", s.handleSearchLayer).Methods(s.methods(http.MethodGet)...)

	if s.syncService != nil {
		r.HandleFunc(apiPrefix+"/sync", s.handleSync).Methods(s.methods(http.MethodPost)...)
	}

	// OpenAPI spec and Swagger UI
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods(http.MethodGet)

	return r
}

// methods adds OPTIONS for preflight requests when CORS is enabled.
func (s *Server) methods(m ...string) []string {
	if s.config.CORS.Enabled() {
		return append(m, http.MethodOptions)
	}
	return m
}

// Router returns the mux router. It is served by the tls adapter.
func (s *Server) Router() *mux.Router {
	return s.router
}

// requestIDMiddleware propagates the caller's request id or assigns one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// requestID returns the id assigned by requestIDMiddleware.
func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("request",
			"request_id", requestID(r),
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path, "request_id", requestID(r))
				s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
