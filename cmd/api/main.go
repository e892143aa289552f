package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkravets/clearway/internal/core/consumer"
	consumerpg "github.com/mkravets/clearway/internal/core/consumer/postgres"
	ledgerpg "github.com/mkravets/clearway/internal/core/ledger/postgres"
	ledgerservice "github.com/mkravets/clearway/internal/core/ledger/service"
	"github.com/mkravets/clearway/internal/core/outbox"
	"github.com/mkravets/clearway/internal/core/outbox/dispatcher"
	outboxpg "github.com/mkravets/clearway/internal/core/outbox/postgres"
	paymentdomain "github.com/mkravets/clearway/internal/core/payment/domain"
	paymentpg "github.com/mkravets/clearway/internal/core/payment/postgres"
	paymentservice "github.com/mkravets/clearway/internal/core/payment/service"
	"github.com/mkravets/clearway/internal/infra/kafka"
	"github.com/mkravets/clearway/internal/infra/postgres"
	infraredis "github.com/mkravets/clearway/internal/infra/redis"
	"github.com/mkravets/clearway/internal/transport/httpapi"
	"github.com/mkravets/clearway/internal/transport/httpapi/handler"
	"github.com/mkravets/clearway/pkg/config"
	"github.com/mkravets/clearway/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting Clearway API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize database connection pool
	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// The schema is the system's contract; refuse to start against a
	// database that is missing it.
	if err := db.VerifySchema(ctx); err != nil {
		log.Error("Database schema verification failed", "error", err)
		os.Exit(1)
	}
	log.Info("Database connection established")

	// Initialize Redis client for the idempotency fast path. The cache is
	// a hint layer: an unreachable Redis degrades latency, not correctness,
	// so a failed ping is logged and startup continues.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, idempotency cache degraded to store-only", "error", err)
	} else {
		log.Info("Redis connection established")
	}
	idempotencyCache := infraredis.NewIdempotencyCache(redisClient, cfg.IdempotencyCacheTTL, log)

	// Initialize repositories
	ledgerRepo := ledgerpg.NewLedgerRepository(db.Pool)
	paymentRepo := paymentpg.NewPaymentRepository(db.Pool)
	outboxRepo := outboxpg.NewOutboxRepository(db.Pool)
	processedRepo := consumerpg.NewProcessedEventRepository(db.Pool)

	// Initialize services
	ledgerSvc := ledgerservice.NewService(ledgerRepo, log)
	outboxWriter := outbox.NewWriter(outboxRepo)
	resolver := paymentservice.NewIdempotencyResolver(idempotencyCache, paymentRepo, log)
	paymentSvc := paymentservice.NewService(db, paymentRepo, resolver, ledgerSvc, outboxWriter, log)

	kafkaCfg := kafka.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	}

	// Start the outbox dispatcher. A broker that is down at startup only
	// delays delivery: event rows stay durable in the outbox.
	if cfg.OutboxPublisherEnabled {
		producer, err := kafka.NewProducer(kafkaCfg, log)
		if err != nil {
			log.Error("Failed to create Kafka producer, outbox dispatch disabled; events will accumulate", "error", err)
		} else {
			defer producer.Close()
			d := dispatcher.New(db, outboxRepo, producer, dispatcher.Config{
				PollInterval: cfg.OutboxPollInterval,
				BatchSize:    cfg.OutboxBatchSize,
				MaxRetries:   cfg.OutboxMaxRetries,
			}, log)
			go d.Run(ctx)
			log.Info("Outbox dispatcher started")
		}
	}

	// Start consumer groups
	if cfg.ConsumerEnabled {
		processor := consumer.NewProcessor(db, processedRepo, log)

		if cfg.AutoAuthorize {
			authorizerRouter := consumer.NewRouter(consumer.GroupPaymentAuthorizer, processor, log).
				On(paymentdomain.EventPaymentCreated, consumer.AutoAuthorizeHandler(paymentSvc))
			startConsumer(ctx, kafkaCfg, consumer.GroupPaymentAuthorizer, authorizerRouter, log)
		}

		auditRouter := consumer.NewRouter(consumer.GroupPaymentAudit, processor, log).
			On(paymentdomain.EventPaymentSettled, consumer.AuditHandler(log)).
			On(paymentdomain.EventPaymentFailed, consumer.AuditHandler(log))
		startConsumer(ctx, kafkaCfg, consumer.GroupPaymentAudit, auditRouter, log)
	}

	// Initialize HTTP handlers
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	accountHandler := handler.NewAccountHandler(ledgerSvc)
	healthHandler := handler.NewHealthHandler(db)

	// Determine allowed origins for CORS
	allowedOrigins := []string{"http://localhost:5173"}
	if cfg.IsProduction() {
		if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins = []string{origins}
		}
	}

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:         log,
		AllowedOrigins: allowedOrigins,
		PaymentHandler: paymentHandler,
		AccountHandler: accountHandler,
		HealthHandler:  healthHandler,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}

// startConsumer launches one consumer group; a broker that is down at
// startup disables that group for this process rather than aborting boot.
func startConsumer(ctx context.Context, kafkaCfg kafka.Config, group string, router *consumer.Router, log *logger.Logger) {
	c, err := kafka.NewConsumer(kafkaCfg, group, router, log)
	if err != nil {
		log.Error("Failed to create Kafka consumer", "consumer_group", group, "error", err)
		return
	}
	go func() {
		c.Run(ctx)
		if err := c.Close(); err != nil {
			log.Error("Failed to close Kafka consumer", "consumer_group", group, "error", err)
		}
	}()
	log.Info("Consumer started", "consumer_group", group)
}
