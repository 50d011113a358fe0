package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/cashlens/cashlens/internal/config"
	"github.com/cashlens/cashlens/internal/importer"
	"github.com/cashlens/cashlens/internal/ledger"
	"github.com/cashlens/cashlens/internal/logging"
	"github.com/cashlens/cashlens/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"session_ttl", cfg.Upload.SessionTTL,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"api_key_required", cfg.Security.RequireAPIKey,
	)

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		dbName := strings.TrimPrefix(u.Path, "/")
		slog.Info("connected to database", "name", dbName)
	} else {
		slog.Info("connected to database")
	}

	store := ledger.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	activity := ledger.NewActivityLog(pool, logger)

	// Assemble the pipeline
	staging := importer.NewStagingStore(cfg.Upload.SessionTTL, logger)
	limiter := importer.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	analyzer := importer.NewAnalyzer(
		importer.NewCategorizer(),
		importer.NewAnomalyDetector(importer.AnomalyConfig{
			K:               cfg.Analysis.AnomalyK,
			MinSamples:      cfg.Analysis.MinSamples,
			AbsoluteCeiling: decimal.NewFromInt(cfg.Analysis.AbsoluteCeiling),
		}, store),
		importer.NewDuplicateDetector(importer.DuplicateConfig{
			DateWindowDays:      cfg.Analysis.DateWindowDays,
			SimilarityThreshold: cfg.Analysis.FuzzyThreshold,
		}, store),
	)
	coord := importer.NewCoordinator(
		importer.NewCsvParser(cfg.Upload.MaxFileSize),
		analyzer,
		staging,
		store,
		activity,
		limiter,
		logger,
	)

	server := web.NewServer(coord, activity, cfg)

	// Sweep expired staged sessions on the configured schedule
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Upload.EvictInterval, func() {
		if n := staging.Sweep(); n > 0 {
			slog.Info("swept sessions", "count", n)
		}
	}); err != nil {
		slog.Error("failed to schedule session sweep", "error", err)
		os.Exit(1)
	}
	sweeper.Start()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		sweeper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight uploads before closing the listener
		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
