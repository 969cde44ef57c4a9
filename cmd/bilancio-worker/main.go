package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	gw, closeGateway := cli.InitGateway(logger, cfg)
	defer closeGateway()

	amqpClient := cli.InitAMQP(logger, cfg)
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(gw, cfg.ExportPath)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionEvents(gctx, func(ev *amqp.TransactionEvent) error {
			return exportWorker.HandleEvent(gctx, ev)
		})
	})

	g.Go(func() error {
		return exportWorker.RunPeriodic(gctx, cfg.ExportInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
