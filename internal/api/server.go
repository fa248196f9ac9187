// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/whiphelmets/internal/platform/config"
	"github.com/taibuivan/whiphelmets/internal/platform/constants"
	"github.com/taibuivan/whiphelmets/internal/platform/middleware"
	"github.com/taibuivan/whiphelmets/internal/shop/catalog"
	"github.com/taibuivan/whiphelmets/internal/shop/order"
	"github.com/taibuivan/whiphelmets/internal/users/auth"
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

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
type Handlers struct {
	// Liveness is the /health handler. It returns 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. It returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth handles sessions, registration, recovery and staff user management.
	Auth *auth.Handler

	// Catalog handles the product listing and staff product management.
	Catalog *catalog.Handler

	// Orders handles checkout, order lookup, the payment webhook and staff
	// order management.
	Orders *order.Handler

	// Media serves stored product images. Nil disables the /media route.
	Media http.Handler
}

// Dependencies holds the cross-cutting collaborators of the middleware chain.
type Dependencies struct {
	// Sessions resolves bearer tokens to principals.
	Sessions middleware.SessionResolver

	// Limiter throttles every request per client IP.
	Limiter middleware.Limiter

	// TrustedProxies may report the client address in forwarding headers.
	TrustedProxies middleware.TrustedProxies
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(cfg *config.Config, log *slog.Logger, deps Dependencies, h Handlers) *Server {
	router := NewRouter(cfg, log, deps, h)

	return &Server{
		router: router,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           router,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// NewRouter builds the routing tree. It is separate from [NewServer] so
// tests can drive the full chain with httptest.
func NewRouter(cfg *config.Config, log *slog.Logger, deps Dependencies, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.ClientIP(deps.TrustedProxies))
	r.Use(middleware.StructuredLogger(log))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		Development:    cfg.IsDevelopment(),
		AllowedOrigins: append(middleware.ParseOrigins(cfg.PublicBaseURL), middleware.ParseOrigins(cfg.ExtraOrigins)...),
	}))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	if deps.Limiter != nil {
		r.Use(middleware.RateLimit(deps.Limiter, "global"))
	}
	r.Use(middleware.Authenticate(deps.Sessions))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health checks for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	if h.Media != nil {
		r.Handle("/media/*", http.StripPrefix("/media/", h.Media))
	}

	// # Application API
	// Domain-specific route groups mounted under versioned prefix.
	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/sessions", h.Auth.SessionRoutes())
		api.Mount("/users", h.Auth.UserRoutes())
		api.Mount("/auth", h.Auth.AccountRoutes())
		api.Mount("/products", h.Catalog.Routes())
		api.Mount("/orders", h.Orders.Routes())
		api.Mount("/payments", h.Orders.PaymentRoutes())

		api.Route("/admin", func(admin chi.Router) {
			admin.Mount("/users", h.Auth.AdminRoutes())
			admin.Mount("/products", h.Catalog.AdminRoutes())
			admin.Mount("/orders", h.Orders.AdminRoutes())
		})
	})

	return r
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
