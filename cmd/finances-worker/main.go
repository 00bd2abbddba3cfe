package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finances/internal/amqp"
	"finances/internal/cli"
	"finances/internal/log"
	"finances/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker, true)
	logger.Info("Starting finances-worker")

	if cfg.DataBackend == "memory" {
		logger.Warn("Worker uses the memory backend; imports will not be visible to the API process")
	}

	res := cli.OpenBackend(context.Background(), logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	importWorker := worker.NewImportWorker(cli.NewServices(cfg, res).Importer)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Consuming import requests", "queue", cfg.AMQPQueue, "backend", cfg.DataBackend)
	if err := client.ConsumeImportRequests(ctx, importWorker.HandleImportRequest); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
