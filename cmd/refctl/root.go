package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"logiref/internal/bootstrap"
	"logiref/internal/config"
	"logiref/internal/domain/reference"
	"logiref/pkg/logger"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	driver      string
	databaseURL string
	sqlitePath  string
	configPath  string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "refctl",
		Short: "Operate the shipment reference allocator",
		Long: `refctl talks to the reference store directly.

Available subcommands:
  migrate  - apply schema migrations
  schemes  - list configured schemes
  allocate - reserve identifiers
  preview  - show the identifiers allocate would return, without reserving
  purge    - delete expired reservations
  import   - load identifiers issued elsewhere
  token    - sign an access token`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.driver, "driver", envOr("STORE_DRIVER", bootstrap.DriverPostgres), "store driver (postgres, sqlite)")
	flags.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	flags.StringVar(&opts.sqlitePath, "sqlite-path", envOr("SQLITE_PATH", "logiref.db"), "sqlite database file")
	flags.StringVar(&opts.configPath, "config", os.Getenv("SCHEMES_CONFIG"), "scheme configuration file (YAML)")
	flags.StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level")

	root.AddCommand(
		newMigrateCmd(opts),
		newSchemesCmd(opts),
		newAllocateCmd(opts),
		newPreviewCmd(opts),
		newPurgeCmd(opts),
		newImportCmd(opts),
		newTokenCmd(),
	)
	return root
}

// session is an opened store plus the allocation service built on it.
type session struct {
	backend *bootstrap.Backend
	service *reference.Service
	log     *logger.Logger
}

func (o *globalOptions) open(ctx context.Context) (*session, error) {
	log, err := logger.New(logger.Config{Level: o.logLevel, OutputPaths: []string{"stderr"}})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	file, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := file.ServiceConfig()
	if err != nil {
		return nil, err
	}

	backend, err := bootstrap.Open(ctx, bootstrap.Options{
		Driver:      o.driver,
		DatabaseURL: o.databaseURL,
		SQLitePath:  o.sqlitePath,
		MaxConns:    2,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	svc, err := bootstrap.NewReferenceService(backend, file, cfg, log)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return &session{backend: backend, service: svc, log: log}, nil
}

func (s *session) Close() {
	s.backend.Close()
	_ = s.log.Sync()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
