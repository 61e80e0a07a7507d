package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/api"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/repository/incidentdb"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/repository/postgres"
	redisrepo "github.com/SoyunJu/LogCollector-sub000/internal/adapter/repository/redis"
	"github.com/SoyunJu/LogCollector-sub000/internal/pkg/config"
	"github.com/SoyunJu/LogCollector-sub000/internal/pkg/logger"
	"github.com/SoyunJu/LogCollector-sub000/internal/pkg/telemetry"
	"github.com/SoyunJu/LogCollector-sub000/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPipelineMetrics(reg)

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "log-collector-ingest",
		Exporter:     cfg.TraceExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// --- Database and Redis Connections ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		logger.Error("failed to prepare postgres schema", "error", err)
		os.Exit(1)
	}

	incidentDB, err := incidentdb.Open(cfg.IncidentDBPath)
	if err != nil {
		logger.Error("failed to open incident store", "error", err, "path", cfg.IncidentDBPath)
		os.Exit(1)
	}
	defer incidentdb.Close(incidentDB)

	redisOpts, err := redis.ParseURL(cfg.RedisAddr)
	if err != nil {
		logger.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// --- Initialize Repositories ---
	queue := redisrepo.NewQueueRepository(redisClient, redisrepo.QueueConfig{
		QueueKey: cfg.QueueKey,
		DLQKey:   cfg.DLQKey,
		QueueTTL: cfg.QueueTTL,
		DLQTTL:   cfg.DLQTTL,
	}, logger)
	queue.OnHealthChange(m.SetQueueAvailable)
	if !queue.Probe(ctx) {
		logger.Warn("could not connect to redis, writing directly to the store until it recovers")
	}
	go queue.StartHealthCheck(ctx, cfg.RedisHealthInterval)

	errorLogs := postgres.NewErrorLogRepository(db, logger)
	incidents := incidentdb.NewIncidentRepository(incidentDB, logger)
	drafts := incidentdb.NewDraftRepository(incidentDB)

	// --- Initialize Use Cases ---
	clk := clock.New()
	recorder := usecase.NewRecordOccurrenceUseCase(errorLogs, incidents, drafts, usecase.DraftThresholds{
		HostSpread: cfg.DraftHostSpreadThreshold,
		HighRecur:  cfg.DraftHighRecurThreshold,
	}, m, clk, logger)
	ingestUseCase := usecase.NewIngestEventUseCase(queue, recorder, m, clk, logger)

	// --- Start Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	adminMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: adminMux,
	}

	go func() {
		logger.Info("starting metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// --- Initialize Ingest Server ---
	ingestServer := &http.Server{
		Addr:         cfg.IngestServerAddr,
		Handler:      api.NewRouter(cfg, logger, ingestUseCase, m),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("starting ingest server", "addr", ingestServer.Addr)
		if err := ingestServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ingest server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := ingestServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ingest server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", "error", err)
	}

	logger.Info("servers shut down gracefully")
}
