package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/finrecon/settlement-service/internal/api"
	"github.com/finrecon/settlement-service/internal/api/service"
	"github.com/finrecon/settlement-service/internal/config"
	"github.com/finrecon/settlement-service/internal/data/mongo"
	"github.com/finrecon/settlement-service/internal/data/postgres"
	"github.com/finrecon/settlement-service/internal/logger"
	"github.com/finrecon/settlement-service/internal/platform/messaging/producers"
	"github.com/finrecon/settlement-service/internal/platform/persistence"
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

	// Initialize Kafka producer for calculation requests
	calculationProducer, err := producers.NewCalculationReqMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize calculation request producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	runRepo := postgres.NewRunRepository(log, postgresDB)
	approvalRepo := postgres.NewApprovalRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	archive := mongo.NewAuditRepository(log, mongoDB.Database())

	// Initialize services
	runService := service.NewRunService(log, postgresDB, runRepo, approvalRepo, outboxRepo, calculationProducer, archive)
	approvalService := service.NewApprovalService(log, postgresDB, approvalRepo, outboxRepo, archive)

	// Run transitions ride along with approval decisions in the same transaction
	approvalService.RegisterDecisionListener(runService.ApplyApprovalDecision)

	// Initialize REST server
	server := api.NewServer(log, cfg, runService, approvalService, archive)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server before closing its dependencies
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = calculationProducer.Close(); err != nil {
		log.Error("Error closing calculation request producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
