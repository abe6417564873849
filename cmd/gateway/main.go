package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"nimbus-gateway/interfaces/http/rest"
	"nimbus-gateway/internal/config"
	"nimbus-gateway/internal/di"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := cfg.Logging.BuildLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	container, err := di.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize container", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Install and activate the configured version before accepting
	// traffic, mirroring the host lifecycle signals.
	if err := container.Gateway.Initialize(ctx); err != nil {
		logger.Fatal("install failed", zap.Error(err))
	}
	if err := container.Gateway.ActivatePending(ctx); err != nil {
		logger.Fatal("activation failed", zap.Error(err))
	}

	container.Gateway.StartBackground()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      rest.NewRouter(container.Gateway, container.Metrics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		logger.Info("gateway listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", cfg.Version.Tag),
			zap.String("store", cfg.Store.Backend),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if err := container.Shutdown(); err != nil {
		logger.Error("gateway shutdown failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
