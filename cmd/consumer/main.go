package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/api"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/metrics"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/notifier"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/repository/incidentdb"
	"github.com/SoyunJu/LogCollector-sub000/internal/adapter/repository/postgres"
	redisrepo "github.com/SoyunJu/LogCollector-sub000/internal/adapter/repository/redis"
	"github.com/SoyunJu/LogCollector-sub000/internal/domain"
	"github.com/SoyunJu/LogCollector-sub000/internal/pkg/config"
	"github.com/SoyunJu/LogCollector-sub000/internal/pkg/logger"
	"github.com/SoyunJu/LogCollector-sub000/internal/pkg/periodic"
	"github.com/SoyunJu/LogCollector-sub000/internal/pkg/telemetry"
	"github.com/SoyunJu/LogCollector-sub000/internal/usecase"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting consumer worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("consumer stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("consumer worker shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "log-collector-consumer",
		Exporter:     cfg.TraceExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPipelineMetrics(reg)

	// Connect to Redis
	redisOpts, err := redis.ParseURL(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}
	log.Info("connected to postgres")

	incidentDB, err := incidentdb.Open(cfg.IncidentDBPath)
	if err != nil {
		return err
	}
	defer incidentdb.Close(incidentDB)

	// Instantiate repositories
	queue := redisrepo.NewQueueRepository(redisClient, redisrepo.QueueConfig{
		QueueKey: cfg.QueueKey,
		DLQKey:   cfg.DLQKey,
		QueueTTL: cfg.QueueTTL,
		DLQTTL:   cfg.DLQTTL,
	}, log)
	queue.OnHealthChange(m.SetQueueAvailable)
	if !queue.Probe(ctx) {
		log.Warn("redis is unreachable, consumers will retry on every tick")
	}
	ignored := redisrepo.NewIgnoreRepository(redisClient, cfg.IgnoredSetKey)
	queueAdmin := redisrepo.NewAdminRepository(redisClient, cfg.QueueKey, cfg.DLQKey, log)
	errorLogs := postgres.NewErrorLogRepository(db, log)
	incidents := incidentdb.NewIncidentRepository(incidentDB, log)
	outbox := incidentdb.NewOutboxRepository(incidentDB)
	drafts := incidentdb.NewDraftRepository(incidentDB)

	var chat domain.Notifier = notifier.NewLogNotifier(log)
	if cfg.NotifyWebhookURL != "" {
		chat = notifier.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	}

	// Instantiate the use cases
	clk := clock.New()
	recorder := usecase.NewRecordOccurrenceUseCase(errorLogs, incidents, drafts, usecase.DraftThresholds{
		HostSpread: cfg.DraftHostSpreadThreshold,
		HighRecur:  cfg.DraftHighRecurThreshold,
	}, m, clk, log)
	consumer := usecase.NewProcessEventsUseCase(queue, ignored, recorder, chat, usecase.ProcessEventsConfig{
		BatchSize:             cfg.ConsumerBatchSize,
		PopTimeout:            cfg.ConsumerPopTimeout,
		NotifyRepeatThreshold: cfg.NotifyRepeatThreshold,
	}, m, clk, log)
	bridge := usecase.NewIncidentBridgeUseCase(incidents, drafts, errorLogs, cfg.ResolveGrace, m, clk, log)
	drain := usecase.NewOutboxDrainUseCase(outbox, errorLogs, ignored, usecase.OutboxConfig{
		BatchSize:   cfg.OutboxBatchSize,
		MaxAttempts: cfg.OutboxMaxAttempts,
		BackoffBase: cfg.OutboxBackoffBase,
		BackoffMax:  cfg.OutboxBackoffMax,
	}, m, clk, log)
	lifecycle := usecase.NewLifecycleUseCase(incidents, drafts, cfg.DraftRetention, m, clk, log)
	adminQueue := usecase.NewAdminQueueUseCase(queueAdmin, m)
	errorLogAdmin := usecase.NewErrorLogAdminUseCase(errorLogs, clk, log)

	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(adminQueue, bridge, errorLogAdmin, reg, log),
	}

	runner := periodic.NewRunner(clk, log)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < cfg.ConsumerWorkers; i++ {
		name := fmt.Sprintf("consumer-%d", i)
		g.Go(func() error {
			return runner.Run(gctx, periodic.Task{
				Name:           name,
				Interval:       cfg.ConsumerInterval,
				RunImmediately: true,
				Fn:             drainQueue(consumer, cfg.ConsumerBatchSize),
			})
		})
	}

	g.Go(func() error {
		return runner.Run(gctx, periodic.Task{
			Name:     "outbox",
			Interval: cfg.OutboxInterval,
			Fn: func(ctx context.Context) error {
				_, err := drain.Drain(ctx)
				return err
			},
		})
	})
	g.Go(func() error {
		return runner.Run(gctx, periodic.Task{
			Name:     "auto_close",
			Interval: cfg.LifecycleCloseInterval,
			Fn: func(ctx context.Context) error {
				_, err := lifecycle.AutoClose(ctx)
				return err
			},
		})
	})
	g.Go(func() error {
		return runner.Run(gctx, periodic.Task{
			Name:     "draft_cleanup",
			Interval: cfg.DraftCleanupInterval,
			Fn: func(ctx context.Context) error {
				_, err := lifecycle.CleanupDrafts(ctx)
				return err
			},
		})
	})
	g.Go(func() error {
		return runner.Run(gctx, periodic.Task{
			Name:           "queue_gauge",
			Interval:       cfg.QueueGaugeInterval,
			RunImmediately: true,
			Fn:             adminQueue.SampleDepth,
		})
	})
	g.Go(func() error {
		queue.StartHealthCheck(gctx, cfg.RedisHealthInterval)
		return nil
	})

	g.Go(func() error {
		log.Info("starting admin server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, stopping consumer...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return adminServer.Shutdown(shutdownCtx)
	})

	log.Info("consumer worker started, processing events...", "workers", cfg.ConsumerWorkers, "queue", cfg.QueueKey)
	return g.Wait()
}

// drainQueue keeps processing while batches come back full.
func drainQueue(uc *usecase.ProcessEventsUseCase, batchSize int) func(context.Context) error {
	return func(ctx context.Context) error {
		for ctx.Err() == nil {
			n, err := uc.ProcessBatch(ctx)
			if err != nil {
				return err
			}
			if n < batchSize {
				return nil
			}
		}
		return nil
	}
}
