package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/pokedex/internal/api"
	"github.com/timmy/pokedex/internal/api/handler"
	"github.com/timmy/pokedex/internal/app"
	"github.com/timmy/pokedex/internal/config"
	"github.com/timmy/pokedex/internal/logger"
)

func main() {
	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid configuration")
	}
	// Profile submission cannot work without dataset credentials.
	if err := cfg.Dataset.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid dataset configuration")
	}

	ctx := context.Background()
	components, err := app.Build(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize components")
	}
	defer components.Close()

	catalogHandler := handler.NewCatalogHandler(components.Ingest, components.Catalog)
	router := api.SetupRouter(api.Handlers{
		Health:  handler.NewHealthHandler(cfg.Index.Backend),
		Profile: handler.NewProfileHandler(components.Ingest),
		Chat:    handler.NewChatHandler(components.Aggregator, components.Streamer),
		Search:  handler.NewSearchHandler(components.Searcher),
		Catalog: catalogHandler,
	}, cfg, appLogger)

	// An in-memory index starts empty; seed it from the catalog file.
	if cfg.Index.Backend == config.IndexBackendLocal && components.Catalog != nil {
		catalogHandler.Start(logger.SetComponent(ctx, "seed"), 0)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if err := catalogHandler.Wait(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Catalog push cancelled at shutdown")
	}
	if err := components.Publisher.Wait(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Pending publishes did not finish before shutdown")
	}
	if n := components.Publisher.Failures(); n > 0 {
		appLogger.WithField("failed", n).Warn("Background publishes failed during this run")
	}

	appLogger.Info("Server exited")
}
