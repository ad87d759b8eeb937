package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bugetar/internal/amqp"
	"bugetar/internal/config"
	apphttp "bugetar/internal/http"
	applog "bugetar/internal/log"
	"bugetar/internal/services"
	"bugetar/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The broker is optional: without it writes still land in SQLite and
	// summaries refresh on the worker's periodic sweep.
	var publisher services.EventPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.WithComponent(applog.ComponentAMQP).Warn("Broker unavailable, recorded events disabled", applog.FieldError, err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	insightConfig := services.InsightConfig{
		AnomalyThreshold:  cfg.AnomalyThreshold,
		TopCategories:     cfg.TopCategories,
		GoalSearchTimeout: cfg.GoalSearchTimeout,
	}

	srv := apphttp.NewServer(
		":"+cfg.Port,
		services.NewTransactionService(repo, publisher),
		services.NewInsightService(repo, insightConfig),
		services.NewTargetService(repo),
		services.NewAccountantService(repo),
		apphttp.Options{CacheSize: cfg.CacheSize, CacheTTL: cfg.CacheTTL},
	)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting bugetar server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
