package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/cazzmachine/app/api"
	"github.com/lysyi3m/cazzmachine/app/cfg"
	"github.com/lysyi3m/cazzmachine/app/database"
	"github.com/lysyi3m/cazzmachine/app/feed"
	"github.com/lysyi3m/cazzmachine/app/notify"
	"github.com/lysyi3m/cazzmachine/app/provider"
	"github.com/lysyi3m/cazzmachine/app/tasks"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appConfig.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting cazzmachine", "version", appConfig.Version)

	if err := os.MkdirAll(filepath.Dir(appConfig.DBPath), 0o755); err != nil {
		slog.Error("Failed to create data directory", "path", appConfig.DBPath, "error", err)
		os.Exit(1)
	}

	db, version, err := database.OpenAndMigrate(appConfig.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appConfig.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Database ready", "path", appConfig.DBPath, "schema_version", version)

	itemRepo := database.NewItemStore(db)
	diagRepo := database.NewDiagnosticStore(db)
	stateRepo := database.NewStateStore(db)

	configCache := provider.NewConfigCache(appConfig.ProvidersDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load provider configurations", "dir", appConfig.ProvidersDir, "error", err)
		os.Exit(1)
	}

	providers, err := provider.BuildAll(configCache.GetEnabledConfigs(), appConfig.UserAgent)
	if err != nil {
		slog.Error("Failed to build providers", "error", err)
		os.Exit(1)
	}
	slog.Info("Providers loaded", "enabled", len(providers), "total", configCache.GetConfigCount())

	httpClient := &http.Client{Timeout: appConfig.HTTPTimeout}
	knobs := cfg.NewKnobs(appConfig.ThrottleLevel, appConfig.ThreadCount)

	scheduler := tasks.NewScheduler(providers, itemRepo, diagRepo, knobs, httpClient, appConfig.LowWaterMark)
	scheduler.Start()
	defer scheduler.Stop()

	maintenance := tasks.NewMaintenance(appConfig.PruneSchedule, appConfig.DiagnosticsRetentionDays, itemRepo, diagRepo)
	if err := maintenance.Start(); err != nil {
		slog.Error("Failed to start maintenance", "error", err)
		os.Exit(1)
	}
	defer maintenance.Stop()

	hub := notify.NewHub()
	defer hub.Close()

	lifecycle := notify.NewLifecycle(itemRepo, diagRepo, stateRepo, knobs)
	engine := notify.NewEngine(itemRepo, diagRepo, hub, lifecycle, knobs, appConfig.NotifyFirstDelay)
	engine.Start()
	defer engine.Stop()

	generator := feed.NewGenerator(appConfig.BaseUrl, appConfig.Port, appConfig.Version)
	apiHandler := api.NewHandler(itemRepo, diagRepo, stateRepo, configCache, scheduler,
		lifecycle, knobs, generator, hub, appConfig.Version)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Background loops are stopped via defer, newest first.
}
