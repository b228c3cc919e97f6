// Kestrel - Credit decisioning from bureau enquiry to recommendation.
// Copyright (c) 2025 algolend
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/algolend/kestrel/internal/api"
	"github.com/algolend/kestrel/internal/bus"
	"github.com/algolend/kestrel/internal/cache"
	"github.com/algolend/kestrel/internal/domain"
	"github.com/algolend/kestrel/internal/engine"
	"github.com/algolend/kestrel/internal/flags"
	"github.com/algolend/kestrel/internal/repository"
	"github.com/algolend/kestrel/internal/scoring"
	"github.com/algolend/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := loadConfig()

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"mock_bureau", cfg.Bureau.MockMode,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize record store
	store, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize record store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("record store initialized", "driver", cfg.Repository.Driver)

	// Initialize cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize event bus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize flag engine and load rules. Builtins are seeded into the
	// database on first start; after that the database is authoritative
	// and rules are managed via the flag-rules API.
	flagEngine, err := flags.NewEngine(logger)
	if err != nil {
		slog.Error("failed to initialize flag engine", "error", err)
		os.Exit(1)
	}
	if err := loadFlagRules(ctx, store, flagEngine); err != nil {
		slog.Error("failed to load flag rules", "error", err)
		os.Exit(1)
	}
	slog.Info("flag engine initialized", "rules_count", flagEngine.RuleCount())

	// Initialize scoring engine
	scoringEngine := scoring.NewEngine(scoring.DefaultWeights(), logger)
	slog.Info("scoring engine initialized")

	// Initialize evaluation pipeline
	pipeline := engine.New(cfg.Bureau, nil, scoringEngine, flagEngine, store, cacheImpl, busImpl, logger)
	slog.Info("evaluation pipeline initialized", "mock_mode", cfg.Bureau.MockMode)

	// Initialize async worker for queued evaluations
	asyncWorker := worker.NewWorker(busImpl, pipeline, logger)
	if err := asyncWorker.Start(); err != nil {
		slog.Error("failed to start async worker", "error", err)
		os.Exit(1)
	}
	slog.Info("async worker started")

	// Initialize server
	srv := api.NewServer(cfg.Server, pipeline, store, cacheImpl, busImpl, flagEngine, Version)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the worker first so queued evaluations drain
	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadConfig builds the configuration from defaults plus KESTREL_*
// environment overrides. KESTREL_ENV=production switches the base to
// the postgres/redis/nats stack with the live bureau.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("KESTREL_ENV") == "production" {
		cfg = domain.ProductionConfig()
	}

	if v := os.Getenv("KESTREL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("KESTREL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("KESTREL_BUREAU_URL"); v != "" {
		cfg.Bureau.URL = v
	}
	if v := os.Getenv("KESTREL_BUREAU_USERNAME"); v != "" {
		cfg.Bureau.Username = v
	}
	if v := os.Getenv("KESTREL_BUREAU_PASSWORD"); v != "" {
		cfg.Bureau.Password = v
	}
	if v := os.Getenv("KESTREL_MOCK_BUREAU"); v != "" {
		cfg.Bureau.MockMode = v == "true"
	}
	if v := os.Getenv("KESTREL_ENQUIRY_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			cfg.Bureau.EnquiryLimit = limit
		}
	}

	if v := os.Getenv("KESTREL_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("KESTREL_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Repository.PostgresPort = port
		}
	}
	if v := os.Getenv("KESTREL_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}

	if v := os.Getenv("KESTREL_REDIS_ADDR"); v != "" {
		cfg.Cache.Type = "redis"
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.Type = "nats"
		cfg.EventBus.NATSUrl = v
	}

	if v := os.Getenv("KESTREL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KESTREL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	return cfg
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadFlagRules seeds missing builtin rules into the database, then
// loads the full database rule set into the engine.
func loadFlagRules(ctx context.Context, store domain.RecordStore, flagEngine *flags.Engine) error {
	for _, rule := range flags.BuiltinRules() {
		_, err := store.GetFlagRule(ctx, rule.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrRuleNotFound) {
			return err
		}
		if err := store.SaveFlagRule(ctx, rule); err != nil {
			return err
		}
		slog.Info("seeded builtin flag rule", "id", rule.ID, "name", rule.Name)
	}

	dbRules, err := store.ListFlagRules(ctx)
	if err != nil {
		return err
	}
	return flagEngine.LoadRules(dbRules)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               KESTREL                     ║")
	fmt.Println("  ║       Credit Decision Engine              ║")
	fmt.Println("  ║    From enquiry to recommendation.        ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Bureau:   mock=%t\n", cfg.Bureau.MockMode)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /credit-checks                      - Run a credit evaluation")
	fmt.Println("    POST /credit-checks/async                - Queue a credit evaluation")
	fmt.Println("    GET  /credit-checks/{id}                 - Get a decision record")
	fmt.Println("    GET  /credit-checks/{id}/report          - Download the bureau report")
	fmt.Println("    GET  /users/{userID}/credit-checks       - Decision history for a user")
	fmt.Println("    GET  /identities/{idNumber}/credit-checks - Decision history for an identity")
	fmt.Println("    GET  /flag-rules                         - List risk-flag rules")
	fmt.Println("    POST /flag-rules                         - Create or replace a rule")
	fmt.Println("    POST /flag-rules/reload                  - Hot-reload rules from database")
	fmt.Println("    GET  /health                             - Health check")
	fmt.Println()
}
