package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/finrecon/settlement-service/internal/aggregation"
	"github.com/finrecon/settlement-service/internal/config"
	"github.com/finrecon/settlement-service/internal/data/mongo"
	"github.com/finrecon/settlement-service/internal/data/postgres"
	"github.com/finrecon/settlement-service/internal/logger"
	"github.com/finrecon/settlement-service/internal/platform/messaging/consumers"
	"github.com/finrecon/settlement-service/internal/platform/messaging/producers"
	"github.com/finrecon/settlement-service/internal/platform/persistence"
	"github.com/finrecon/settlement-service/internal/worker/consumer"
	"github.com/finrecon/settlement-service/internal/worker/outbox_poller"
	"github.com/finrecon/settlement-service/internal/worker/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Settlement Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	runRepo := postgres.NewRunRepository(log, postgresDB)
	txSource := postgres.NewTransactionRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	archive := mongo.NewAuditRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler should be nil-safe.

	// Initialize Kafka producer for outbox events
	notificationProducer, err := producers.NewNotificationEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize notification event producer", "error", err)
		os.Exit(1)
	}

	// Initialize aggregation pool
	calculator, err := aggregation.NewCalculator(aggregation.CalculatorConfig{Size: cfg.WorkerPool.Size}, log)
	if err != nil {
		log.Error("Failed to initialize aggregation calculator", "error", err)
		os.Exit(1)
	}

	// Initialize calculation service
	calculationService := service.NewCalculationService(
		log,
		postgresDB,
		runRepo,
		txSource,
		calculator,
		outboxRepo,
		archive,
	)

	// Initialize calculation event handler
	calculationEventHandler := consumer.NewCalculationEventHandler(
		log,
		calculationService,
		dlqProducer,
	)

	// Initialize outbox poller
	eventPublisher := outbox_poller.NewEventPublisher(
		outboxRepo,
		notificationProducer,
		log,
	)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		eventPublisher,
		log,
	)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.CalculationTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.CalculationTopic, cfg.Kafka.ConsumerGroup, calculationEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Release the aggregation pool
	log.Info("Shutting down aggregation pool", "running_workers", calculator.Running())
	calculator.Release()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close notification event producer
	if err = notificationProducer.Close(); err != nil {
		log.Error("Error closing notification event producer", "error", err)
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Settlement Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Settlement Worker shutdown completed with errors")
	} else {
		log.Info("Settlement Worker shutdown completed successfully")
	}
}
