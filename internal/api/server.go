package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"dormdesk/internal/config"
	"dormdesk/internal/domain"
	"dormdesk/internal/models"
	"dormdesk/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the controllers the HTTP API dispatches to.
type Deps struct {
	Auth       Authenticator
	Rooms      domain.RoomService
	Compliance domain.ComplianceService
	Catalog    domain.CatalogService
	Checkout   domain.CheckoutService
	Users      domain.UserService
	Dashboard  domain.DashboardService
	// Files serves locally stored uploads. Nil when the driver keeps files remotely.
	Files store.FileReader
	// Ready reports whether downstream dependencies are reachable.
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the console API.
type HTTPServer struct {
	cfg    config.APIConfig
	deps   Deps
	auth   *HTTPAuth
	logger *zerolog.Logger
	router chi.Router
	server *http.Server
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:    cfg,
		deps:   deps,
		auth:   NewHTTPAuth(cfg, deps.Auth, logger),
		logger: logger,
	}
	srv.router = srv.routes()

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(recoverer(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.auth.Throttle).Post("/auth/login", s.handleLogin)

		r.Group(func(pr chi.Router) {
			pr.Use(s.auth.Wrap)

			pr.Post("/auth/logout", s.handleLogout)
			pr.Get("/auth/me", s.handleMe)

			pr.With(RequirePermission(models.PermViewDashboard)).Get("/dashboard", s.handleDashboard)
			pr.With(RequirePermission(models.PermViewFiles)).Get("/files/{bucket}/{id}", s.handleFile)

			pr.Route("/rooms", s.roomRoutes)
			pr.Route("/compliance", s.complianceRoutes)
			pr.Route("/services", s.catalogRoutes)
			pr.Route("/checkouts", s.checkoutRoutes)
			pr.Route("/users", s.userRoutes)
		})
	})

	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func actorFrom(r *http.Request) models.Actor {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return p.Actor()
	}
	return models.Actor{}
}
