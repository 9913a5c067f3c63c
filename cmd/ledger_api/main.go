package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/school-fee-ledger/internal/config"
	"github.com/school-fee-ledger/internal/data/mongo"
	"github.com/school-fee-ledger/internal/data/postgres"
	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/ledger_api"
	"github.com/school-fee-ledger/internal/ledger_api/service"
	"github.com/school-fee-ledger/internal/logger"
	"github.com/school-fee-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("ledger_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	// Migrations run before the pool opens
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
	entryRepo := postgres.NewEntryRepository(logger.WithComponent(log, "entry_repository"), postgresDB)
	outboxRepo := postgres.NewOutboxRepository(logger.WithComponent(log, "outbox_repository"), postgresDB)
	rosterRepo := mongo.NewRosterRepository(logger.WithComponent(log, "roster_repository"), mongoDB.Database(), mongoDB.RosterCollection())

	batchPool, err := service.NewBatchPool(cfg.WorkerPool, log)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	clock := ledger.LocationClock{Location: cfg.Ledger.Location()}

	// Initialize services
	entryService := service.NewEntryService(logger.WithComponent(log, "entry_service"), service.EntryServiceDeps{
		DB:             postgresDB,
		EntryRepo:      entryRepo,
		OutboxRepo:     outboxRepo,
		Pool:           batchPool,
		Clock:          clock,
		RequestTimeout: cfg.Ledger.RequestTimeout,
		MaxBulkIDs:     cfg.Ledger.MaxBulkIDs,
	})
	generationService := service.NewGenerationService(
		logger.WithComponent(log, "generation_service"),
		postgresDB,
		entryRepo,
		outboxRepo,
		rosterRepo,
		batchPool,
		clock,
		cfg.Ledger.RequestTimeout,
	)
	reportService := service.NewReportService(logger.WithComponent(log, "report_service"), entryRepo, clock, cfg.Ledger.RequestTimeout)

	server := ledger_api.NewServer(log, cfg, ledger_api.Services{
		Entries:    entryService,
		Generation: generationService,
		Reports:    reportService,
		Clock:      clock,
		Probes: map[string]ledger_api.HealthProbe{
			"postgres": postgresDB.Ping,
			"mongodb":  mongoDB.Ping,
		},
	})
	log.Info("REST server initialized", "timezone", cfg.Ledger.Location().String())

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

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

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain HTTP first so in-flight requests can still reach the databases
	var shutdownErr error
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	batchPool.Shutdown()
	postgresDB.Close()

	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
