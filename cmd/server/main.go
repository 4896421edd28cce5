// Package main is the entry point for the splitrelay task coordinator.
//
// The coordinator submits work to a remote worker through a shared task registry,
// follows each task to a terminal state under a fixed time budget, and serves the
// results, reconciliation reports and lot maintenance over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/splitrelay/internal/config"
	"github.com/aristath/splitrelay/internal/di"
	"github.com/aristath/splitrelay/internal/server"
	"github.com/aristath/splitrelay/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from .env and environment variables
// 2. Initializes logging
// 3. Wires databases, repositories, services and jobs via the DI container
// 4. Starts the maintenance scheduler and the HTTP server
// 5. Waits for a shutdown signal and shuts down gracefully
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.DevMode,
		Service: "splitrelay",
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Bool("shared_registry", cfg.RegistryDSN != "").
		Msg("Starting splitrelay")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Fail fast on a broken store before accepting requests.
	if err := jobs.CheckDatabases.Run(); err != nil {
		container.Close()
		log.Fatal().Err(err).Msg("Database health check failed")
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Live sessions are abandoned first so no timer fires against closed databases.
	cancelled := container.Coordinator.CancelAll("coordinator shutting down")
	log.Info().Int("cancelled", cancelled).Msg("Live sessions cancelled")

	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	container.Close()
	log.Info().Msg("Server stopped")
}
