// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/contact-verifier/internal/job"
	"github.com/contact-verifier/internal/logging"
	"github.com/contact-verifier/internal/models"
	"github.com/contact-verifier/internal/types"
	"github.com/gorilla/mux"
)

// Service interfaces for dependency injection and testing

// VerificationEngineInterface defines the control surface of the background
// verification engine.
type VerificationEngineInterface interface {
	Start(ctx context.Context, ownerID string, batchSize, delaySeconds int) (int, error)
	Stop(ctx context.Context, ownerID string) error
	Status(ownerID string) job.Status
}

// InteractiveCheckerInterface defines request-scoped phone checks.
type InteractiveCheckerInterface interface {
	Check(ctx context.Context, ownerID string, phones []string) ([]types.Outcome, error)
}

// ContactStoreInterface defines the backlog intake operations.
type ContactStoreInterface interface {
	BatchCreate(ctx context.Context, ownerID string, phones []string) ([]*models.PhoneRecord, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.PhoneRecord, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	engine      VerificationEngineInterface
	interactive InteractiveCheckerInterface
	contacts    ContactStoreInterface
	config      *ServerConfig
	logger      *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int // Per-caller API rate limit
	Burst           int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	engine VerificationEngineInterface,
	interactive InteractiveCheckerInterface,
	contacts ContactStoreInterface,
) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		engine:      engine,
		interactive: interactive,
		contacts:    contacts,
		config:      config,
		logger:      logging.GetGlobalLogger().WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter)) // Rate limiting after CORS
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Verification engine endpoints
	api.HandleFunc("/verification/start", s.handleStartVerification).Methods("POST")
	api.HandleFunc("/verification/stop", s.handleStopVerification).Methods("POST")
	api.HandleFunc("/verification/status", s.handleVerificationStatus).Methods("POST")
	api.HandleFunc("/verification/check", s.handleInteractiveCheck).Methods("POST")

	// Backlog intake endpoints
	api.HandleFunc("/contacts", s.handleAddContacts).Methods("POST")
	api.HandleFunc("/contacts", s.handleListContacts).Methods("GET")
	api.HandleFunc("/contacts/{id}", s.handleDeleteContact).Methods("DELETE")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "contact-verifier",
	})
}

// callerID extracts the caller identity from the request. The auth layer in
// front of this service sets the header.
func callerID(r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	return userID, userID != ""
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
