// Copyright (c) 2026 Washdesk. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package console wires together the HTTP router, middleware chain, and the
session and view handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost presentation boundary of the terminal.
  - It acts as the composition root for the chi router.
  - The route guard is evaluated on every request to a protected view; the
    decision is never cached.
*/
package console

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/washdesk/internal/guard"
	"github.com/taibuivan/washdesk/internal/platform/apperr"
	"github.com/taibuivan/washdesk/internal/platform/config"
	"github.com/taibuivan/washdesk/internal/platform/constants"
	"github.com/taibuivan/washdesk/internal/platform/middleware"
	"github.com/taibuivan/washdesk/internal/platform/notify"
	"github.com/taibuivan/washdesk/internal/platform/respond"
	"github.com/taibuivan/washdesk/internal/querycache"
	"github.com/taibuivan/washdesk/internal/session"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// Dependencies groups everything the console handlers need.
type Dependencies struct {
	// Session is the process-wide session owner.
	Session *session.Manager

	// Views reads backend collections for the guarded views.
	Views *querycache.Cache

	// Toasts is drained by the front-end through GET /toasts.
	Toasts *notify.Queue

	// Routes declares the protected views.
	Routes *guard.Table

	// Health backs the /ready check.
	Health HealthDependencies
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups. ctx bounds the rate limiter sweepers.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, deps Dependencies) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(ctx))
	r.Use(middleware.PanicRecovery(log))
	r.Use(WithSession(deps.Session))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	r.NotFound(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, apperr.NotFound("View"))
	})

	// # Infrastructure Endpoints
	liveness, readiness := NewHealthHandlers(deps.Health, log)
	r.Get("/health", liveness)
	r.Get("/ready", readiness)

	// # Public Views
	r.Get(guard.PathLogin, page("login"))
	r.Get(guard.PathForbidden, page("forbidden"))
	r.Get(guard.PathStationSelect, stationSelect)

	// # Session
	sessions := &sessionHandler{toasts: deps.Toasts, views: deps.Views}
	loginLimiter := middleware.NewRateLimiter(ctx, cfg.LoginRateRPS, constants.LoginRateLimitBurst)

	r.With(loginLimiter.Handler).Post("/auth/login", sessions.login)
	r.Post("/auth/logout", sessions.logout)
	r.Get("/session", sessions.current)
	r.Post("/session/station", sessions.selectStation)
	r.Get("/toasts", sessions.drainToasts)

	// # Guarded Views
	views := &viewHandler{cache: deps.Views}
	for _, route := range deps.Routes.Routes() {
		r.With(Guard(route)).Get(route.Path, views.collection(route))
	}

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ConsolePort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("console starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
