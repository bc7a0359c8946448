package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"financas/internal/amqp"
	"financas/internal/config"
	applog "financas/internal/log"
	"financas/internal/mirror"
	"financas/internal/mirror/google"
	"financas/internal/mirror/memory"
	"financas/internal/storage"
	"financas/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup(slog.LevelInfo)
	logger.Info("Starting mirror-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var appender mirror.Appender
	switch cfg.MirrorBackend {
	case "sheets":
		appender, err = google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets mirror", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.SpreadsheetID)
	default:
		appender = memory.New()
		logger.Info("Using in-memory mirror, appended rows are not persisted")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, amqp.Queues{
		Events:  cfg.AMQPEventsQueue,
		Prompts: cfg.AMQPPromptsQueue,
		Sync:    cfg.AMQPSyncQueue,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(repo, appender)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("mirror-worker running", "queue", cfg.AMQPSyncQueue)

	if err := amqpClient.ConsumeTransactionSync(ctx, mirrorWorker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Shutdown with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
