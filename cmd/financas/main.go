package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"financas/internal/amqp"
	"financas/internal/auth"
	"financas/internal/config"
	"financas/internal/core"
	applog "financas/internal/log"
	"financas/internal/services"
	"financas/internal/session"
	"financas/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup(slog.LevelInfo)
	logger.Info("Starting financas")

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

	gate := auth.NewSecretGate(cfg.AccessSecret, repo)
	reports := services.NewReportService(repo)
	ledger := services.NewLedgerService(repo, amqpClient, reports)
	manager := session.NewManager(ledger, reports, gate, amqpClient, core.DefaultCatalog())
	scheduler := services.NewDueScheduler(repo, amqpClient, cfg.NotifyHour)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeEvents(ctx, manager.Handle)
	})
	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	logger.Info("financas running",
		"exchange", cfg.AMQPExchange,
		"notify_hour", cfg.NotifyHour,
		"sqlite_db", cfg.SQLiteDBPath)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Shutdown with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
