// Heron - Claims analytics that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/heron/internal/analysis"
	"github.com/opensource-finance/heron/internal/api"
	"github.com/opensource-finance/heron/internal/bus"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/fraud"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
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

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize custom fraud rule set
	ruleSet, err := fraud.NewRuleSet()
	if err != nil {
		slog.Error("failed to initialize rule set", "error", err)
		os.Exit(1)
	}

	// Tenants to preload rules for and run async workers against
	tenantIDs := parseTenants(os.Getenv("HERON_TENANTS"))

	// Load custom rules from database (no hardcoded defaults - configure via API)
	if err := loadFraudRulesFromDatabase(ctx, repo, ruleSet, tenantIDs); err != nil {
		slog.Error("failed to load fraud rules", "error", err)
		os.Exit(1)
	}
	slog.Info("fraud rule set initialized", "rules_count", ruleSet.RuleCount())

	// Initialize Analysis Engine
	engine := analysis.NewEngine(domain.FraudConfig{}, domain.LitigationConfig{}, domain.MonitoringConfig{}, ruleSet, nil)
	slog.Info("analysis engine initialized", "operations", len(domain.Operations()))

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HERON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, engine)

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// parseTenants splits a comma-separated tenant list from the environment.
func parseTenants(env string) []string {
	if env == "" {
		return nil
	}
	var tenants []string
	for _, t := range strings.Split(env, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants
}

// loadFraudRulesFromDatabase preloads each tenant's custom rules into
// the rule set. Rules are configured via POST /fraud-rules - no
// hardcoded defaults.
func loadFraudRulesFromDatabase(ctx context.Context, repo domain.Repository, ruleSet *fraud.RuleSet, tenantIDs []string) error {
	total := 0
	for _, tenantID := range tenantIDs {
		dbRules, err := repo.ListFraudRules(ctx, tenantID)
		if err != nil {
			slog.Warn("failed to list fraud rules from database", "tenant_id", tenantID, "error", err)
			continue // Start with empty rules - they can be added via API
		}
		for _, rule := range dbRules {
			if err := ruleSet.LoadRule(rule); err != nil {
				slog.Warn("failed to load fraud rule", "id", rule.ID, "error", err)
			} else {
				total++
			}
		}
	}

	if total == 0 {
		slog.Info("no custom fraud rules loaded - configure via POST /fraud-rules API")
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 HERON                   ║")
	fmt.Println("  ║       Claims Analytics Engine           ║")
	fmt.Println("  ║    Reserves, fraud, and risk in one.    ║")
	fmt.Println("  ╚═════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /datasets                          - Upload a claims dataset")
	fmt.Println("    GET  /datasets                          - List datasets")
	fmt.Println("    GET  /datasets/{id}                     - Get dataset by ID")
	fmt.Println("    POST /datasets/{id}/analyze/{operation} - Run an analysis")
	fmt.Println("    POST /analyze/{operation}               - Analyze inline claims")
	fmt.Println("    GET  /datasets/{id}/analyses            - List stored analyses")
	fmt.Println("    GET  /analyses/{id}                     - Get analysis by ID")
	fmt.Println("    GET  /operations                        - List supported operations")
	fmt.Println("    GET  /fraud-rules                       - List custom fraud rules")
	fmt.Println("    POST /fraud-rules                       - Create a custom fraud rule")
	fmt.Println("    POST /fraud-rules/reload                - Hot-reload rules from database")
	fmt.Println("    GET  /health                            - Health check")
	fmt.Println()
}
