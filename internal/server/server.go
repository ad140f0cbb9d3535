package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Bogunok/eudi-wallet/internal/config"
	"github.com/Bogunok/eudi-wallet/internal/did"
	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/logger"
	"github.com/Bogunok/eudi-wallet/internal/metrics"
	"github.com/Bogunok/eudi-wallet/internal/server/handlers"
	"github.com/Bogunok/eudi-wallet/internal/server/middleware"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

// ServiceName is reported by the version endpoint
const ServiceName = "wallet-server"

// requestTimeout bounds each request; approvals include a PIN key derivation
const requestTimeout = 60 * time.Second

// Dependencies are the collaborators the server routes requests to
type Dependencies struct {
	Identities *did.Service
	Issuance   *issuance.Service
	Schemas    handlers.SchemaLister
	Store      handlers.Pinger
	Metrics    *metrics.Metrics
}

type Server struct {
	config *config.ServerEnvironment
	logger *slog.Logger
	router *chi.Mux
	deps   Dependencies
}

func NewServer(cfg *config.ServerEnvironment, logger *slog.Logger, deps Dependencies) (*Server, error) {
	if deps.Identities == nil || deps.Issuance == nil || deps.Schemas == nil || deps.Store == nil {
		return nil, fmt.Errorf("server dependencies are incomplete")
	}
	if cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is not set")
	}

	server := &Server{
		config: cfg,
		logger: logger,
		router: chi.NewRouter(),
		deps:   deps,
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server, nil
}

// Handler returns the router (used by tests with httptest)
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.config.Environment))
	s.router.Use(middleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
	s.router.Use(middleware.RequestSizeLimit(s.config.MaxRequestSize))
	s.router.Use(chimiddleware.Timeout(requestTimeout))
}

func (s *Server) registerRoutes() {
	didHandler := handlers.NewDIDHandler(s.deps.Identities)
	requestHandler := handlers.NewRequestHandler(s.deps.Issuance, s.deps.Schemas)
	credentialHandler := handlers.NewCredentialHandler(s.deps.Issuance)

	// public
	s.router.Get("/health/live", handlers.HandleHealth)
	s.router.Get("/health/ready", handlers.HandleReadiness(s.deps.Store))
	s.router.Get("/version", handlers.HandleVersion(ServiceName))
	s.router.Get("/.well-known/jwks.json", handlers.HandleJWKS(s.deps.Identities))
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}
	s.router.Get("/did/resolve/{did}", didHandler.HandleResolve)
	s.router.Post("/vc/verify", credentialHandler.HandleVerify)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate([]byte(s.config.AuthJWTSecret)))
		pinLimit := middleware.PinAttemptLimit(s.config.PinAttemptsPerMinute)

		r.Post("/did/generate", didHandler.HandleGenerate)
		r.Patch("/did/deactivate/{did}", didHandler.HandleDeactivate)
		r.With(pinLimit).Post("/did/rotate-pin", didHandler.HandleRotatePin)
		r.Get("/did/mine", didHandler.HandleListMine)

		r.Get("/vc/{id}", credentialHandler.HandleGet)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(wallet.RoleHolder))

			r.Post("/vc/requests", requestHandler.HandleSubmit)
			r.Get("/vc/requests", requestHandler.HandleListHolder)
			r.Get("/vc", credentialHandler.HandleListMine)
			r.Get("/vc/org/{orgId}", credentialHandler.HandleListOrganization)
			r.Delete("/vc/{id}", credentialHandler.HandleDelete)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(wallet.RoleIssuer))

			r.With(pinLimit).Post("/vc/issue", credentialHandler.HandleIssueDirect)
			r.Get("/issuer/schemas", requestHandler.HandleListSchemas)
			r.Get("/issuer/requests", requestHandler.HandleListPending)
			r.With(pinLimit).Post("/issuer/requests/{id}/approve", requestHandler.HandleApprove)
			r.Post("/issuer/requests/{id}/reject", requestHandler.HandleReject)
			r.Patch("/issuer/vc/{id}/revoke", credentialHandler.HandleRevoke)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		wallet.RespondWithErrorResponse(w, r, wallet.NewNotFoundError("route not found"))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		wallet.RespondWithErrorResponse(w, r, wallet.NewMalformedRequestError(fmt.Sprintf("method %s not allowed", r.Method)))
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr))

		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}
