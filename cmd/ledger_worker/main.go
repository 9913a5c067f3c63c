package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/school-fee-ledger/internal/config"
	"github.com/school-fee-ledger/internal/data/mongo"
	"github.com/school-fee-ledger/internal/data/postgres"
	"github.com/school-fee-ledger/internal/ledger_worker/consumer"
	"github.com/school-fee-ledger/internal/ledger_worker/outbox_poller"
	"github.com/school-fee-ledger/internal/logger"
	"github.com/school-fee-ledger/internal/platform/messaging/consumers"
	"github.com/school-fee-ledger/internal/platform/messaging/producers"
	"github.com/school-fee-ledger/internal/platform/persistence"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	outboxRepo := postgres.NewOutboxRepository(logger.WithComponent(log, "outbox_repository"), postgresDB)
	rosterRepo := mongo.NewRosterRepository(logger.WithComponent(log, "roster_repository"), mongoDB.Database(), mongoDB.RosterCollection())
	if err := rosterRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create roster indexes", "error", err)
		os.Exit(1)
	}

	ledgerProducer, err := producers.NewLedgerEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize ledger event producer", "error", err)
		os.Exit(1)
	}

	// dlqProducer is nil when KAFKA_DLQ_TOPIC is empty; the handler is nil-safe
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	rosterConsumer := consumers.NewKafkaConsumer(appCtx, logger.WithComponent(log, "roster_consumer"), &cfg.Kafka, cfg.Kafka.RosterTopic)
	rosterHandler := consumer.NewRosterEventHandler(logger.WithComponent(log, "roster_handler"), rosterRepo, dlqProducer)

	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, ledgerProducer, logger.WithComponent(log, "outbox_poller"))

	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	log.Info("Starting roster consumer",
		"topic", cfg.Kafka.RosterTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := rosterConsumer.Subscribe(appCtx, rosterHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("roster consumer error: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting outbox poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
			"topic", cfg.Kafka.LedgerEventsTopic,
		)
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Outbox poller stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	var shutdownErr error
	if err := rosterConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
		shutdownErr = err
	}
	if err := ledgerProducer.Close(); err != nil {
		log.Error("Error closing ledger event producer", "error", err)
		shutdownErr = err
	}
	if err := dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serviceErr != nil {
		log.Error("Ledger Worker shutdown with errors", "error", serviceErr)
	}
	if shutdownErr != nil || serviceErr != nil {
		log.Error("Ledger Worker shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Ledger Worker shutdown completed successfully")
}
