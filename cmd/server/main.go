package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/baseplate/tracker/config"
	"github.com/baseplate/tracker/internal/api"
	"github.com/baseplate/tracker/internal/api/handlers"
	"github.com/baseplate/tracker/internal/core/auth"
	"github.com/baseplate/tracker/internal/core/resource"
	"github.com/baseplate/tracker/internal/core/store"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/resources"
	"github.com/baseplate/tracker/internal/storage"
	"github.com/baseplate/tracker/internal/storage/memory"
	"github.com/baseplate/tracker/internal/storage/postgres"
	"github.com/baseplate/tracker/internal/telemetry"
)

// backend is what both storage implementations provide.
type backend interface {
	store.Provider
	store.Sequencer
}

func main() {
	// Load configuration
	cfg := config.Load()
	logger := telemetry.NewLogger(cfg.Log)

	// Validate critical configuration
	if cfg.JWT.Secret == "" {
		logger.Fatal().Msg("JWT_SECRET environment variable is required")
	}

	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("storage", cfg.Server.Storage).Msg("failed to open storage")
	}
	defer closeStore()

	metrics := telemetry.NewMetrics(cfg.Metrics)

	// Initialize services
	authService := auth.NewService(auth.NewRepository(st), &cfg.JWT)
	workspaceService := workspace.NewService(st)
	resolver := workspace.NewResolver(st)

	// Declare resources
	registry := resource.NewRegistry()
	factory := resource.NewFactory(logger, metrics)
	if err := resources.Register(registry, factory, resources.Deps{Store: st, Sequencer: st, Accounts: authService}); err != nil {
		logger.Fatal().Err(err).Msg("failed to register resources")
	}

	// Setup router
	router := api.NewRouter(
		logger,
		metrics,
		authService,
		resolver,
		handlers.NewAuthHandler(authService),
		handlers.NewWorkspaceHandler(workspaceService),
		handlers.NewResourceHandler(resource.NewDispatcher(registry, factory)),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(cfg.Server.Mode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Str("storage", cfg.Server.Storage).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openStore connects the configured backend. Postgres is migrated before use.
func openStore(cfg *config.Config, logger zerolog.Logger) (backend, func(), error) {
	if cfg.Server.Storage == "memory" {
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		return memory.NewStore(storage.Tables), func() {}, nil
	}

	db, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("connected to database")

	return postgres.NewStore(db, storage.Tables), func() { db.Close() }, nil
}
