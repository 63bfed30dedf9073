// Command logai-server boots the LogAI engine: it loads configuration,
// wires every C1-C9 collaborator via internal/engine, starts the anomaly
// detection loop and the health/metrics HTTP server, and shuts down
// gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/logai/logai/internal/config"
	"github.com/logai/logai/internal/engine"
	"github.com/logai/logai/internal/health"
	"github.com/logai/logai/internal/tracing"
)

var (
	version = "dev"
	commit  = "unknown"
	builtBy = "manual"
)

func main() {
	_ = godotenv.Load()

	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("starting LogAI engine",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("built_by", builtBy),
		zap.String("llm_provider", string(cfg.LLMProvider)),
		zap.String("session_backend", cfg.SessionBackend),
	)

	shutdownTracing, err := tracing.Init(tracing.Config{
		ServiceName:    "logai",
		ServiceVersion: version,
		Environment:    os.Getenv("ENVIRONMENT"),
		Enabled:        cfg.EnableTracing,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())

	eng, err := engine.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}

	checker := health.New(logger, eng.HealthCollaborators())
	healthServer := health.NewServer(checker, logger, cfg.HealthPort, cfg.HealthBindAddr, cfg.MetricsEndpoint)

	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()

	healthDone := make(chan error, 1)
	go func() {
		healthDone <- healthServer.Start()
	}()
	healthServer.SetReady(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-healthDone:
		if err != nil {
			logger.Error("health server error", zap.Error(err))
		}
	}

	logger.Info("initiating graceful shutdown", zap.Duration("timeout", cfg.ShutdownTimeout))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", zap.Error(err))
	}

	select {
	case <-engineDone:
		logger.Info("engine shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit", zap.Duration("timeout", cfg.ShutdownTimeout))
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown error", zap.Error(err))
	}

	time.Sleep(100 * time.Millisecond)
}

// initLogger builds a production zap logger when ENVIRONMENT=production,
// otherwise a development logger with more verbose output.
func initLogger() (*zap.Logger, error) {
	if os.Getenv("ENVIRONMENT") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
