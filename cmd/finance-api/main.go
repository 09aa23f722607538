package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"financeangle/internal/advisor"
	"financeangle/internal/amqp"
	"financeangle/internal/charts"
	"financeangle/internal/cli"
	apphttp "financeangle/internal/http"
	"financeangle/internal/importer"
	"financeangle/internal/log"
	"financeangle/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(log.ComponentApp, cfg.LogLevel, os.Stdout)

	logger.Info("Starting finance-api", "port", cfg.Port, "database", cfg.SQLiteDBPath)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	// Recommendations use Gemini when a key is configured.
	var adv advisor.Advisor = advisor.NoOp{}
	var gemini *advisor.Gemini
	if cfg.GeminiAPIKey != "" {
		g, err := advisor.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel,
			logger.WithComponent(log.ComponentAdvisor).Logger)
		if err != nil {
			logger.Warn("Gemini unavailable, using fallback recommendations", "error", err)
		} else {
			adv, gemini = g, g
			logger.Info("Gemini advisor enabled", "model", cfg.GeminiModel)
		}
	}

	// Position recomputes are published only when AMQP is configured.
	var publisher services.PositionPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, position recomputes will not be published", "error", err)
		} else {
			publisher = client
			logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	var profiles importer.Profiles
	if cfg.ImportProfilesFile != "" {
		p, err := importer.LoadProfiles(cfg.ImportProfilesFile)
		if err != nil {
			logger.Error("Failed to load import profiles", "error", err, "path", cfg.ImportProfilesFile)
			os.Exit(1)
		}
		profiles = p
		logger.Info("Import profiles loaded", "count", len(profiles))
	}

	ledger := services.NewLedgerService(repo, adv)
	dashboard := services.NewDashboardService(repo, publisher, cfg.SummaryExcludePatterns)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Ledger:             ledger,
		Dashboard:          dashboard,
		Charts:             charts.NewRenderer(cfg.ChartCacheTTL, logger.WithComponent(log.ComponentCharts).Logger),
		DB:                 repo,
		ImportProfiles:     profiles,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if gemini != nil {
			_ = gemini.Close()
		}
		// Closes the repository and the AMQP publisher.
		if err := dashboard.Close(); err != nil {
			logger.Error("Failed to close resources", "error", err)
		}
	})

	logger.Info("Listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
