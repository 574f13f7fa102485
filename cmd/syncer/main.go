package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"foliosync/internal/config"
	"foliosync/internal/database"
	"foliosync/internal/marketplace"
	"foliosync/internal/metrics"
	"foliosync/internal/store"
	"foliosync/internal/syncer"
	"foliosync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/syncer.local.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting syncer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Credentials come from the environment; a .env file is optional.
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"marketplace_url", cfg.Marketplace.BaseURL,
		"store_backend", cfg.Store.Backend,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Open the store
	var st store.Store
	switch cfg.Store.Backend {
	case "memory":
		st = store.NewMemory()
		logger.Info("using in-memory store")
	default:
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg, err := store.NewPostgres(ctx, pool)
		if err != nil {
			logger.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		st = pg
		logger.Info("database connected")
	}

	// Create the marketplace client
	client, err := marketplace.NewClient(
		cfg.Marketplace.BaseURL,
		cfg.Marketplace.Email,
		cfg.Marketplace.Password,
		marketplace.WithLogger(logger),
		marketplace.WithTimeout(cfg.Marketplace.Timeout),
		marketplace.WithRetries(cfg.Marketplace.MaxRetries, time.Second),
		marketplace.WithPageSize(cfg.Marketplace.SnapshotPageSize),
		marketplace.WithPacing(cfg.Sync.InterRequestDelay),
		marketplace.WithDocumentParser(marketplace.JSONDocumentParser{}),
		marketplace.WithProfileParser(marketplace.JSONDocumentParser{}),
	)
	if err != nil {
		logger.Error("failed to create marketplace client", "error", err)
		os.Exit(1)
	}

	runner := syncer.NewRunner(st, client, syncer.Config{
		MaxAge:    cfg.Sync.MaxAge(),
		BatchSize: cfg.Sync.BatchSize,
	}, logger)
	profiles := syncer.NewProfileCrawl(st, client, cfg.Sync.ProfileBatchSize, logger)

	// Start metrics and health server
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())
	mux.HandleFunc("/health", healthHandler(st))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	run := func() {
		report, err := runner.Run(ctx)
		metrics.ObservePass(report, err)
		if err != nil {
			logger.Error("synchronization pass failed", "error", err)
			return
		}
		if _, err := profiles.Run(ctx); err != nil {
			logger.Error("profile crawl failed", "error", err)
		}
	}

	run()
	if !*once {
		ticker := time.NewTicker(cfg.Sync.Interval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				run()
			}
		}
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	logger.Info("syncer stopped")
}

// healthHandler reports store reachability.
func healthHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string            `json:"status"`
			Components map[string]string `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]string),
		}

		if err := st.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["store"] = "disconnected: " + err.Error()
		} else {
			health.Components["store"] = "connected"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
