package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/serpwatch/serp-watch/app/api"
	"github.com/serpwatch/serp-watch/app/cfg"
	"github.com/serpwatch/serp-watch/app/clients"
	"github.com/serpwatch/serp-watch/app/config"
	"github.com/serpwatch/serp-watch/app/database"
	"github.com/serpwatch/serp-watch/app/notify"
	"github.com/serpwatch/serp-watch/app/ranking"
	"github.com/serpwatch/serp-watch/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting SERP Watch", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := config.NewCache(appCfg.ProjectsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load project configurations", "dir", appCfg.ProjectsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Project configurations loaded", "count", configCache.GetConfigCount())

	projectRepo := database.NewProjectRepository(db)
	keywordRepo := database.NewKeywordRepository(db)
	rankingRepo := database.NewRankingRepository(db)
	searchConsoleRepo := database.NewSearchConsoleRepository(db)
	credRepo := database.NewCredentialRepository(db)
	userRepo := database.NewUserRepository(db)
	notificationRepo := database.NewNotificationRepository(db)
	pageSpeedRepo := database.NewPageSpeedRepository(db)
	jobLockRepo := database.NewJobLockRepository(db)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	searchAnalyticsClient := clients.NewSearchAnalyticsClient(httpClient, appCfg.SearchConsoleURL, appCfg.UserAgent)
	metricsClient := clients.NewKeywordMetricsClient(httpClient, appCfg.AdsMetricsURL, appCfg.UserAgent, appCfg.MetricsBatchSize)
	pageSpeedClient := clients.NewPageSpeedClient(httpClient, appCfg.PageSpeedURL, appCfg.UserAgent)
	insightClient := clients.NewInsightClient(httpClient, appCfg.GeminiURL, appCfg.UserAgent)

	var deliverer notify.Deliverer
	if appCfg.SMTPHost != "" {
		deliverer = notify.NewSMTPDeliverer(appCfg.SMTPHost, appCfg.SMTPPort, appCfg.SMTPFrom, appCfg.SMTPUser, appCfg.SMTPPass)
		slog.Info("Notification delivery via SMTP", "host", appCfg.SMTPHost)
	} else {
		deliverer = notify.LogDeliverer{}
		slog.Info("SMTP not configured, notifications are logged only")
	}

	// The notifier stores notification rows and hands them to the scheduler
	// for delivery. The scheduler is created below, after the importer it
	// depends on, so the dispatch closure captures the variable.
	var taskScheduler *tasks.Scheduler
	notifier := notify.NewService(userRepo, notificationRepo, func(n database.Notification) {
		deliverTask := tasks.NewDeliverNotificationTask(n, deliverer, notificationRepo)
		if err := taskScheduler.EnqueueTask(deliverTask); err != nil {
			slog.Error("Failed to enqueue notification delivery", "notification_id", n.ID, "error", err)
		}
	})

	importer := ranking.NewImporter(searchAnalyticsClient, keywordRepo, rankingRepo,
		searchConsoleRepo, credRepo, notifier, appCfg.SignificantChange)
	aggregator := ranking.NewAggregator(keywordRepo, rankingRepo, userRepo, notifier)

	taskScheduler = tasks.NewScheduler(configCache, projectRepo, keywordRepo, userRepo,
		credRepo, pageSpeedRepo, jobLockRepo, importer, aggregator,
		metricsClient, pageSpeedClient, appCfg.WorkerCount)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	taskScheduler.Start()
	defer taskScheduler.Stop()

	apiHandler := api.NewHandler(configCache, projectRepo, keywordRepo, rankingRepo,
		userRepo, credRepo, notificationRepo, insightClient,
		taskScheduler, taskScheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
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
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
