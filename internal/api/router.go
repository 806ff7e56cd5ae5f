// Package api provides the HTTP API for the reserve map viewer.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/reservemap/reservemap/internal/api/handler"
	"github.com/reservemap/reservemap/internal/api/middleware"
	"github.com/reservemap/reservemap/internal/provider/resilience"
	"github.com/reservemap/reservemap/internal/session"
	"github.com/reservemap/reservemap/internal/tiles"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Sessions    *session.Manager
	Renderer    *tiles.Renderer
	Registry    *resilience.Registry
	Readiness   handler.ReadyChecker
	RequireTLS  bool

	// RateLimit overrides the per-session request limit per minute.
	RateLimit int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "reservemap-viewer"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Backend:   cfg.Readiness,
		Registry:  cfg.Registry,
		Sessions:  cfg.Sessions,
	})
	sessions := handler.NewSessionHandler(cfg.Sessions, cfg.Renderer, cfg.Logger)

	standard := middleware.StandardRateLimit
	if cfg.RateLimit > 0 {
		standard.RequestLimit = cfg.RateLimit
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.With(
				middleware.RateLimitByIP(middleware.SessionCreateRateLimit),
				middleware.RequireJSON,
			).Post("/", sessions.Create)

			r.Route("/{"+middleware.SessionParam+"}", func(r chi.Router) {
				r.Use(middleware.SessionAuth(cfg.Sessions))

				r.With(middleware.RateLimitBySession(middleware.TileRateLimit)).
					Get("/tiles/{z}/{x}/{y}.mvt", sessions.Tile)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RateLimitBySession(standard))
					r.Get("/state", sessions.State)
					r.With(middleware.RequireJSON).Post("/events", sessions.Events)
					r.Get("/stream", sessions.Stream)
					r.Delete("/", sessions.Delete)
				})
			})
		})

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", ops.HealthCheck)
			r.Get("/ready", ops.ReadinessCheck)
		})
	})

	return r
}
