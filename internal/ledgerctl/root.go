// Package ledgerctl implements the operator command line for the fee and
// salary ledger. Commands reuse the same services as the HTTP API.
package ledgerctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/school-fee-ledger/internal/config"
	"github.com/school-fee-ledger/internal/data/mongo"
	"github.com/school-fee-ledger/internal/data/postgres"
	"github.com/school-fee-ledger/internal/domain/ledger"
	"github.com/school-fee-ledger/internal/ledger_api/service"
	"github.com/school-fee-ledger/internal/logger"
	"github.com/school-fee-ledger/internal/platform/persistence"
)

var version = "1.0.0"

// Backend is what the commands need from the ledger.
type Backend struct {
	Reports    service.ReportService
	Generation service.GenerationService
	Close      func()
}

// Connector opens a Backend. withRoster is false for commands that never
// read the roster, so they work without MongoDB.
type Connector func(ctx context.Context, cfg *config.Config, log *slog.Logger, clock ledger.Clock, withRoster bool) (*Backend, error)

// Migrator manages the PostgreSQL schema.
type Migrator interface {
	Up(databaseURL, migrationsPath string) error
	Down(databaseURL, migrationsPath string, steps int) error
	Version(databaseURL, migrationsPath string) (uint, bool, error)
}

// Options carries the collaborators of the command tree.
type Options struct {
	LoadConfig func(name string) (*config.Config, error)
	Connect    Connector
	Migrator   Migrator
	Out        io.Writer
	Err        io.Writer
}

// DefaultOptions wires the real databases.
func DefaultOptions() Options {
	return Options{
		LoadConfig: config.LoadConfig,
		Connect:    connect,
		Migrator:   schemaMigrator{},
		Out:        os.Stdout,
		Err:        os.Stderr,
	}
}

type globalFlags struct {
	configName string
	school     string
	user       string
	asOf       string
}

// session is built once per invocation in PersistentPreRunE.
type session struct {
	opts   Options
	flags  *globalFlags
	cfg    *config.Config
	logger *slog.Logger
	clock  ledger.Clock
}

func (s *session) caller() (ledger.Caller, error) {
	caller := ledger.Caller{Scope: s.flags.school, UserID: s.flags.user}
	if err := caller.Validate(); err != nil {
		return ledger.Caller{}, fmt.Errorf("--school is required: %w", err)
	}
	return caller, nil
}

func (s *session) backend(ctx context.Context, withRoster bool) (*Backend, error) {
	return s.opts.Connect(ctx, s.cfg, s.logger, s.clock, withRoster)
}

// NewRootCommand builds the ledgerctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	flags := &globalFlags{}
	sess := &session{opts: opts, flags: flags}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the school fee and salary ledger",
		Long: `ledgerctl gives operators direct access to the fee and salary ledger:
summaries, CSV exports, bulk challan generation and schema migrations.

Configuration is read from configs/<config>.env and the environment, the
same way as the ledger services.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.LoadConfig(flags.configName)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			sess.cfg = cfg
			sess.logger = logger.WithComponent(logger.NewLoggerTo(opts.Err, cfg), cmd.Name())

			sess.clock, err = clockFor(flags.asOf, cfg.Ledger.Location())
			return err
		},
	}
	rootCmd.SetOut(opts.Out)
	rootCmd.SetErr(opts.Err)

	rootCmd.PersistentFlags().StringVar(&flags.configName, "config", "ledgerctl", "config name, read from configs/<name>.env")
	rootCmd.PersistentFlags().StringVar(&flags.school, "school", "", "school id every ledger command is scoped to")
	rootCmd.PersistentFlags().StringVar(&flags.user, "user", "ledgerctl", "operator recorded in logs")
	rootCmd.PersistentFlags().StringVar(&flags.asOf, "as-of", "", "evaluate statuses as of this date (YYYY-MM-DD) instead of today")

	rootCmd.AddCommand(
		newSummaryCommand(sess),
		newExportCommand(sess),
		newGenerateCommand(sess),
		newMigrateCommand(sess),
	)
	return rootCmd
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(opts Options, args []string) int {
	rootCmd := NewRootCommand(opts)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(opts.Err, "Error: %v\n", err)
		return 1
	}
	return 0
}

func clockFor(asOf string, loc *time.Location) (ledger.Clock, error) {
	if asOf == "" {
		return ledger.LocationClock{Location: loc}, nil
	}
	day, err := time.ParseInLocation("2006-01-02", asOf, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid --as-of date, use YYYY-MM-DD: %w", err)
	}
	return ledger.FixedClock{At: day}, nil
}

func connect(ctx context.Context, cfg *config.Config, log *slog.Logger, clock ledger.Clock, withRoster bool) (*Backend, error) {
	postgresDB, err := persistence.ConnectPostgres(ctx, log, &cfg.Postgres)
	if err != nil {
		return nil, err
	}
	closers := []func(){postgresDB.Close}

	entryRepo := postgres.NewEntryRepository(log, postgresDB)
	backend := &Backend{
		Reports: service.NewReportService(log, entryRepo, clock, cfg.Ledger.RequestTimeout),
	}

	if withRoster {
		mongoDB, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
		if err != nil {
			postgresDB.Close()
			return nil, err
		}
		pool, err := service.NewBatchPool(cfg.WorkerPool, log)
		if err != nil {
			postgresDB.Close()
			_ = mongoDB.Close(ctx)
			return nil, err
		}
		closers = append(closers, pool.Shutdown, func() {
			if err := mongoDB.Close(context.Background()); err != nil {
				log.Error("Error closing MongoDB connection", "error", err)
			}
		})

		rosterRepo := mongo.NewRosterRepository(log, mongoDB.Database(), mongoDB.RosterCollection())
		backend.Generation = service.NewGenerationService(log, postgresDB, entryRepo,
			postgres.NewOutboxRepository(log, postgresDB), rosterRepo, pool, clock, cfg.Ledger.RequestTimeout)
	}

	backend.Close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return backend, nil
}

type schemaMigrator struct{}

func (schemaMigrator) Up(url, path string) error { return persistence.RunMigrations(url, path) }

func (schemaMigrator) Down(url, path string, steps int) error {
	return persistence.RollbackMigrations(url, path, steps)
}

func (schemaMigrator) Version(url, path string) (uint, bool, error) {
	return persistence.MigrationVersion(url, path)
}
