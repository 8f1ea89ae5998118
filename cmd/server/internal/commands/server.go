package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/vidstash/vidstash/internal/auth"
	"github.com/vidstash/vidstash/internal/identity"
	"github.com/vidstash/vidstash/internal/logger"
	"github.com/vidstash/vidstash/internal/migrate"
	"github.com/vidstash/vidstash/internal/quota"
	"github.com/vidstash/vidstash/internal/server"
	"github.com/vidstash/vidstash/internal/sweeper"
	"github.com/vidstash/vidstash/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"VIDSTASH_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"VIDSTASH_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"VIDSTASH_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"VIDSTASH_CORS_ORIGINS"`

	// Identity and quota configuration
	SessionTTL time.Duration `help:"registered session TTL" default:"168h" env:"VIDSTASH_SESSION_TTL"`
	VideoLimit int           `help:"maximum saved videos per anonymous session" default:"3" env:"VIDSTASH_VIDEO_LIMIT"`

	// Sweeper configuration
	SweepInterval  time.Duration `help:"how often the expiry sweeper runs" default:"24h" env:"VIDSTASH_SWEEP_INTERVAL"`
	SweepThreshold time.Duration `help:"inactivity threshold before an anonymous session is reclaimed" default:"720h" env:"VIDSTASH_SWEEP_THRESHOLD"`
	NoSweep        bool          `help:"disable the background sweeper" default:"false" env:"VIDSTASH_NO_SWEEP"`

	// Development and operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"VIDSTASH_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"VIDSTASH_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.Init(ctx, "vidstash-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	st, err := buildStores(ctx, c.StoreType, c.PostgresStore, log)
	if err != nil {
		return err
	}
	defer st.close()

	resolver := identity.NewResolver(st.userSessions, st.anonSessions, log)
	enforcer := quota.NewEnforcer(st.anonSessions, st.videos, c.VideoLimit, log)
	engine := migrate.NewEngine(st.anonSessions, st.users, st.videos, log)
	authService := auth.NewService(st.users, st.userSessions, engine, c.SessionTTL, log)

	if !c.NoSweep {
		sw := sweeper.New(st.anonSessions, st.userSessions, st.videos, sweeper.Config{
			Interval:  c.SweepInterval,
			Threshold: c.SweepThreshold,
		}, log)
		sw.Start(ctx)
		defer sw.Stop()
	}

	srv := server.New(resolver, authService, enforcer, st.videos, log)

	handler := cors.New(cors.Options{
		AllowedOrigins:   c.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", identity.UserSessionHeader, identity.AnonSessionHeader},
		AllowCredentials: true, // Required for cookie-based sessions
	}).Handler(srv.Handler())

	httpServer := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" && c.Key != "" {
			log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	return nil
}
