package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finances/internal/amqp"
	"finances/internal/cache"
	"finances/internal/cli"
	apphttp "finances/internal/http"
	"finances/internal/log"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp, false)

	res := cli.OpenBackend(context.Background(), logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	svc := cli.NewServices(cfg, res)

	opts := apphttp.Options{
		Ledger:          svc.Ledger,
		Importer:        svc.Importer,
		Uploads:         res.Uploads,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		ImportRateLimit: cfg.ImportRateLimit,
		Logger:          logger,
	}
	if p, ok := res.Repository.(pinger); ok {
		opts.Ready = p.Ping
	}

	if cfg.ImportMode == "async" {
		if err := cfg.RequireAMQP(); err != nil {
			logger.Error("Async imports need a broker", log.FieldError, err)
			os.Exit(1)
		}
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		opts.Publisher = client
	}

	srv := apphttp.NewServer(":"+cfg.Port, opts)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	if cfg.CategoryCacheTTL > 0 {
		manager := cache.NewManager(svc.CategoryCache)
		manager.Start(ctx, cfg.CategoryCacheTTL)
		defer manager.Stop()
	}

	logger.Info("Starting finances server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"uploads", cfg.UploadBackend,
		"import_mode", cfg.ImportMode)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
