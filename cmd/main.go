package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"demeter/internal/adapters/clickhouse"
	"demeter/internal/adapters/config"
	"demeter/internal/adapters/errors/noop"
	"demeter/internal/adapters/errors/sentry"
	kafkaadapter "demeter/internal/adapters/kafka"
	"demeter/internal/adapters/postgres"
	redisadapter "demeter/internal/adapters/redis"
	"demeter/internal/api"
	costsapi "demeter/internal/api/costs"
	"demeter/internal/api/health"
	"demeter/internal/consumers"
	"demeter/internal/domain/budget"
	"demeter/internal/events"
	"demeter/internal/metrics"
	chrepo "demeter/internal/repository/clickhouse"
	pgrepo "demeter/internal/repository/postgres"
	redisrepo "demeter/internal/repository/redis"
	"demeter/internal/services/aggregator"
	budgetsvc "demeter/internal/services/budget"
	"demeter/internal/workers"
	"demeter/pkg/errors"
	"demeter/pkg/logger"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Register Prometheus metrics
	metrics.Init()

	// Storage connections
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	chClient, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer chClient.Close()

	redisClient, err := redisadapter.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	log.Info("Storage connections established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repositories
	if err := pgrepo.EnsureSchema(ctx, pgClient.DB()); err != nil {
		log.Fatalf("Failed to ensure PostgreSQL schema: %v", err)
	}

	aggregateRepo := pgrepo.NewDailyAggregateRepository(pgClient.DB())
	thresholdRepo := pgrepo.NewBudgetThresholdRepository(pgClient.DB())
	archive := chrepo.NewCostEventArchive(chClient.Conn())
	if err := archive.EnsureSchema(ctx, cfg.Aggregation.EventRetentionDays); err != nil {
		log.Fatalf("Failed to ensure ClickHouse schema: %v", err)
	}
	dedup := redisrepo.NewEventDedup(redisClient, cfg.Ingress.DedupTTL)

	// Services
	aggregatorService, err := aggregator.NewService(
		aggregateRepo,
		cfg.Aggregation.ReferenceTimezone,
		cfg.Aggregation.AggregateRetentionDays,
	)
	if err != nil {
		log.Fatalf("Failed to create aggregator service: %v", err)
	}

	defaults, err := budget.NewThreshold(
		cfg.Budget.DefaultDailyThresholdUSD,
		cfg.Budget.DefaultMonthlyThresholdUSD,
	)
	if err != nil {
		log.Fatalf("Invalid default budget thresholds: %v", err)
	}
	budgetService := budgetsvc.NewService(thresholdRepo, aggregatorService, defaults)

	// Kafka
	producer := kafkaadapter.NewProducer(kafkaadapter.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()
	publisher := events.NewPublisher(producer)

	consumer := kafkaadapter.NewConsumer(kafkaadapter.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   kafkaadapter.TopicCostEvents,
	})

	costEventConsumer := consumers.NewCostEventConsumer(
		consumer,
		aggregatorService,
		archive,
		dedup,
		publisher,
		consumers.CostEventConsumerConfig{
			MaxRetries:   cfg.Ingress.MaxRetries,
			RetryBackoff: cfg.Ingress.RetryBackoff,
		},
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := costEventConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Cost event consumer stopped with error: %v", err)
		}
	}()

	// Background workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewRetentionWorker(
		aggregateRepo, aggregatorService, cfg.Workers.RetentionInterval,
	))
	scheduler.RegisterWorker(workers.NewBudgetWatchWorker(
		budgetService, publisher, redisClient, cfg.Workers.BudgetWatchInterval,
	))
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	// HTTP API
	healthHandler := health.New(log, map[string]health.Checker{
		"postgres":   pgClient,
		"clickhouse": chClient,
		"redis":      redisClient,
	}, cfg.App.Name, version)

	costsHandler := costsapi.NewHandler(aggregatorService, budgetService, cfg.HTTP.QueryTimeout)

	server := api.NewServer(api.ServerConfig{
		Port:        cfg.HTTP.Port,
		ServiceName: cfg.App.Name,
		Version:     version,
	}, healthHandler, costsHandler, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(cancel, errorTracker, log, func(shutdownCtx context.Context) {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("HTTP server shutdown: %v", err)
		}
		if err := scheduler.Stop(); err != nil {
			log.Warnf("Worker scheduler stop: %v", err)
		}
		wg.Wait() // consumer finishes its in-flight message
	})
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(cancel context.CancelFunc, errorTracker errors.Tracker, log *logger.Logger, stop func(ctx context.Context)) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	stop(shutdownCtx)

	// Flush error tracker
	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
