package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"financeangle/internal/amqp"
	"financeangle/internal/cli"
	"financeangle/internal/log"
	"financeangle/internal/services"
	"financeangle/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(log.ComponentWorker, cfg.LogLevel, os.Stdout)

	logger.Info("Starting finance-worker", "interval", cfg.RecomputeInterval.String())

	// The worker reads snapshots and writes positions directly in SQLite.
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	dashboard := services.NewDashboardService(repo, nil, cfg.SummaryExcludePatterns)
	defer dashboard.Close()

	positions := worker.NewPositionWorker(dashboard, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.ConsumePositionRecompute(gctx, positions.HandleRecompute)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - only periodic recomputes will run")
	}

	// Periodic recompute covers missed messages.
	g.Go(func() error {
		return positions.RunPeriodic(gctx, cfg.RecomputeInterval)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
