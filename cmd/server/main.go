package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/hydrowatch/hydrowatch-backend/internal/alerting"
	"github.com/hydrowatch/hydrowatch-backend/internal/analytics"
	"github.com/hydrowatch/hydrowatch-backend/internal/api/middleware"
	"github.com/hydrowatch/hydrowatch-backend/internal/api/rest"
	"github.com/hydrowatch/hydrowatch-backend/internal/api/websocket"
	"github.com/hydrowatch/hydrowatch-backend/internal/config"
	"github.com/hydrowatch/hydrowatch-backend/internal/pkg/logger"
	"github.com/hydrowatch/hydrowatch-backend/internal/repository"
	"github.com/hydrowatch/hydrowatch-backend/internal/service"
	"github.com/hydrowatch/hydrowatch-backend/internal/variety"
	"github.com/hydrowatch/hydrowatch-backend/migrations"
)

const ingestBodyLimitBytes = 64 * 1024

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("hydrowatch backend starting", "port", cfg.Port, "db", cfg.DatabasePath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Durable history is optional; an empty database path runs memory-only.
	var repo *repository.SQLiteRepository
	if cfg.DatabasePath != "" {
		repo, err = repository.NewSQLiteRepository(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer repo.Close()

		migrationSQL, err := migrations.FS.ReadFile("001_initial_schema.sql")
		if err != nil {
			return fmt.Errorf("read migration: %w", err)
		}
		if err := repo.RunMigrations(string(migrationSQL)); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrations completed")
	}

	varieties, err := variety.NewStore(cfg.VarietyProfilePath, log)
	if err != nil {
		return fmt.Errorf("load variety profiles: %w", err)
	}

	// Process-lifetime analytics state, owned here and injected downward.
	buffers := analytics.NewBufferRegistry(cfg.BufferCapacity)
	light := analytics.NewLightIntegrator()
	anomalies := analytics.NewAnomalyDetector(buffers)
	trends := analytics.NewTrendDetector(buffers)

	policy := alerting.DefaultPolicy()
	if len(cfg.EscalationLevels) > 0 {
		policy.Levels = cfg.EscalationLevels
	}
	if cfg.ResolutionHistoryMax > 0 {
		policy.HistoryMax = cfg.ResolutionHistoryMax
	}
	manager := alerting.NewManager(policy, log)

	hub := websocket.NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	var repos repository.Repository
	if repo != nil {
		repos = repository.Repository{Alerts: repo, Readings: repo}
	}

	analyticsService := service.NewAnalyticsService(buffers, light, anomalies, trends, varieties, repos.Readings, log)

	rules := cfg.Rules
	if len(rules) == 0 {
		rules = service.DefaultRules()
	}
	ruleService := service.NewRuleService(rules, manager, hub, repos.Alerts, log)

	// HTTP surface
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLog)
	router.Use(middleware.BodyLimit(ingestBodyLimitBytes))

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handler := rest.NewHandler(analyticsService, ruleService, rest.Options{
		RatePerSec:     cfg.IngestRatePerSec,
		Burst:          cfg.IngestBurst,
		TrendWindow:    cfg.TrendWindow,
		DefaultVariety: cfg.DefaultVariety,
		DefaultStage:   cfg.DefaultStage,
	})
	rest.SetupRoutes(apiRouter, handler)

	wsHandler := websocket.NewHandler(ctx, hub, cfg.AllowedOrigins, log)
	router.HandleFunc("/ws", wsHandler.ServeWS)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	}).Handler(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      corsHandler,
		ReadTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("hydrowatch backend stopped")
	return nil
}
