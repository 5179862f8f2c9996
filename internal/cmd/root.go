package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/config"
	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

type CtlApp struct {
	ConfigPath         string
	DatabaseDriver     string
	DatabaseConnection string
	LogLevel           string

	// Now defaults to time.Now.
	Now func() time.Time
}

func Execute() error {
	app := &CtlApp{}
	rootCmd := NewRootCmd(app)
	return rootCmd.Execute()
}

func NewRootCmd(app *CtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ticketing-ctl",
		Short:         "CLI tool used to operate the ticketing database",
		Version:       fmt.Sprintf("%s (%s)", common.Version, common.GitCommit),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "toml", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&app.DatabaseDriver, "driver", "", "Database driver: pgx or sqlite")
	cmd.PersistentFlags().StringVar(&app.DatabaseConnection, "database", "", "Database connection string")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	cmd.AddCommand(NewHealthCmd(app))
	cmd.AddCommand(NewMigrateCmd(app))
	cmd.AddCommand(NewSeedCmd(app))
	cmd.AddCommand(NewStationsCmd(app))
	cmd.AddCommand(NewTrainsCmd(app))
	cmd.AddCommand(NewSearchCmd(app))
	cmd.AddCommand(NewBookingsCmd(app))
	cmd.AddCommand(NewDashboardCmd(app))
	cmd.AddCommand(NewUsersCmd(app))
	cmd.AddCommand(NewFeedCmd(app))

	return cmd
}

func (app *CtlApp) now() time.Time {
	if app.Now != nil {
		return app.Now()
	}
	return time.Now()
}

func (app *CtlApp) logger(errOut io.Writer) *slog.Logger {
	logger, err := common.NewLogger(app.LogLevel, "text", errOut)
	if err != nil {
		return slog.New(slog.NewTextHandler(errOut, nil))
	}
	return logger
}

// openDatabase resolves connection settings from flags, falling back to the
// [database] section of the --toml file.
func (app *CtlApp) openDatabase(ctx context.Context) (*database.Database, error) {
	driver := app.DatabaseDriver
	dsn := app.DatabaseConnection
	if app.ConfigPath != "" {
		file, err := config.Load(app.ConfigPath)
		if err != nil {
			return nil, err
		}
		if driver == "" {
			driver = file.Database.Driver
		}
		if dsn == "" {
			dsn = file.Database.DSN
		}
	}
	if dsn == "" {
		return nil, fmt.Errorf("no database given: use --database or a --toml file with [database] dsn")
	}

	dialect, err := database.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	return database.NewDatabaseConnection(ctx, dialect, dsn)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withStore opens the database for the duration of fn.
func (app *CtlApp) withStore(cmd *cobra.Command, fn func(ctx context.Context, ticketingStore *store.Store) error) error {
	ctx := commandContext(cmd)
	db, err := app.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, store.New(db).WithClock(app.now))
}
