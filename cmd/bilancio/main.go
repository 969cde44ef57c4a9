package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	"bilancio/internal/pipeline"
	"bilancio/internal/store"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	cfg := cli.LoadAndValidateConfig(logger)

	gw, closeGateway := cli.InitGateway(logger, cfg)
	defer closeGateway()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	var events store.EventPublisher
	if amqpClient != nil {
		events = amqpClient
	}
	st := store.New(gw, events)

	// Initial load before serving; failure is non-fatal, the store
	// records the error and serves the fallback collection.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := st.Load(loadCtx); err != nil {
		logger.Error("Initial load failed, serving fallback state", "error", err)
	}
	loadCancel()

	memo := pipeline.NewMemo(pipeline.DefaultConfig())
	srv := apphttp.NewServer(":"+cfg.Port, st, memo)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting bilancio server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
