package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reservemap/reservemap/internal/api"
	"github.com/reservemap/reservemap/internal/api/middleware"
	"github.com/reservemap/reservemap/internal/naturereserves"
	"github.com/reservemap/reservemap/internal/provider/resilience"
	"github.com/reservemap/reservemap/internal/session"
	"github.com/reservemap/reservemap/internal/telemetry"
	"github.com/reservemap/reservemap/internal/tiles"
	"github.com/reservemap/reservemap/internal/worker"
)

// waitPolicy retries the startup catalog load when --wait-backend is set.
var waitPolicy = resilience.RetryPolicy{
	MaxRetries:      10,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the viewer HTTP server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("http-port", "8080", "HTTP listen port")
	f.String("backend-url", "http://localhost:8000", "reserves API base URL")
	f.Bool("otel-enabled", false, "export traces and metrics over OTLP")
	f.Bool("wait-backend", false, "retry the catalog load until the backend answers")
	f.Bool("require-tls", false, "reject plain HTTP requests behind a proxy")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting reserve map viewer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		Endpoint:       cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if tp.Enabled() {
		log.Info().Str("otlp_endpoint", cfg.OTel.Endpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}
	backendMetrics, err := naturereserves.NewMetrics()
	if err != nil {
		return err
	}
	sessionMetrics, err := session.NewMetrics()
	if err != nil {
		return err
	}

	registry := resilience.NewRegistry()
	client := naturereserves.NewClient(naturereserves.ClientConfig{
		BaseURL:  cfg.Backend.URL,
		TileURL:  cfg.Backend.TileURL,
		Timeout:  cfg.Backend.Timeout,
		Registry: registry,
		Metrics:  backendMetrics,
	})
	backend := naturereserves.NewService(naturereserves.ServiceConfig{
		API:      client,
		Logger:   log.With().Str("component", "naturereserves").Logger(),
		CacheTTL: cfg.Backend.CacheTTL,
		Metrics:  backendMetrics,
	})

	if wait, _ := cmd.Flags().GetBool("wait-backend"); wait {
		log.Info().Str("backend_url", cfg.Backend.URL).Msg("waiting for backend")
		if err := resilience.Wait(ctx, waitPolicy, backend.Ready); err != nil {
			return err
		}
	}

	// Refresh the catalog ahead of expiry so session startups stay warm.
	refresher := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Interval: cfg.Backend.CacheTTL / 2,
			Timeout:  cfg.Backend.Timeout,
			Targets: []worker.RefreshTarget{{
				Name: "catalog",
				Refresh: func(ctx context.Context) error {
					_, err := backend.Refresh(ctx)
					return err
				},
			}},
		},
		Logger: log.With().Str("component", "worker").Logger(),
	})
	go refresher.Start(ctx)

	tokens, err := session.NewTokenService(session.TokenConfig{
		SigningKey: cfg.Session.SigningKey,
		TTL:        cfg.Session.TokenTTL,
	})
	if err != nil {
		return err
	}
	if cfg.Session.SigningKey == "" {
		log.Warn().Msg("no session signing key configured, tokens will not survive a restart")
	}

	sessions := session.NewManager(session.ManagerConfig{
		Backend:        backend,
		Tokens:         tokens,
		Logger:         log.With().Str("component", "session").Logger(),
		Metrics:        sessionMetrics,
		IdleTimeout:    cfg.Session.IdleTTL,
		SearchDebounce: cfg.Search.Debounce,
	})
	go sessions.Run(ctx)
	defer sessions.Shutdown()

	requireTLS, _ := cmd.Flags().GetBool("require-tls")
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		Sessions:    sessions,
		Renderer:    tiles.NewRenderer(tiles.RendererConfig{Source: backend, Logger: log.With().Str("component", "tiles").Logger()}),
		Registry:    registry,
		Readiness:   backend,
		RequireTLS:  requireTLS,
		RateLimit:   cfg.HTTP.RateLimit,
	})

	// Streams clear their own write deadline.
	server := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	// Sessions close first so open streams return.
	sessions.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}

