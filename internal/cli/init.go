// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/finances, cmd/finances-worker, and cmd/finances-import.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finances/internal/backend"
	"finances/internal/cache"
	"finances/internal/config"
	"finances/internal/core"
	"finances/internal/log"
	"finances/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the logger described by cfg and installs it as the
// process default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.ConfigFromEnv(cfg.LogLevel, cfg.LogFormat, component))
	log.SetDefault(logger)
	return logger
}

// Bootstrap loads .env and the configuration, sets up logging and
// validates. It exits the process when the configuration is unusable.
func Bootstrap(component string, requireAMQP bool) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)

	err := cfg.Validate()
	if requireAMQP {
		err = errors.Join(err, cfg.RequireAMQP())
	}
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend opens the repository and upload source selected by cfg.
// Returns the backend or exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err,
			"backend", cfg.DataBackend, "uploads", cfg.UploadBackend)
		os.Exit(1)
	}
	return res
}

// Services bundles the ledger stack built on top of a backend.
type Services struct {
	Ledger        *services.Ledger
	Importer      *services.ImportService
	CategoryCache *cache.LRU[core.Category]
}

// NewServices wires the category cache, ledger and import service.
func NewServices(cfg *config.Config, res *backend.BackendResult) *Services {
	categoryCache := cache.NewLRU[core.Category](cfg.CategoryCacheSize, cfg.CategoryCacheTTL)
	ledger := services.NewLedger(res.Repository, services.NewCategoryStore(res.Repository, categoryCache))
	return &Services{
		Ledger:        ledger,
		Importer:      services.NewImportService(ledger, res.Uploads),
		CategoryCache: categoryCache,
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has returned.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
