package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/common"
)

func NewHealthCmd(app *CtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the ticketing database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			db, err := app.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Ping(ctx); err != nil {
				return fmt.Errorf("database unreachable: %w", err)
			}
			printFields(cmd.OutOrStdout(), [][2]string{
				{"database", "ok"},
				{"driver", string(db.Dialect())},
				{"version", common.Version},
				{"commit", common.GitCommit},
			})
			return nil
		},
	}

	return cmd
}

func NewMigrateCmd(app *CtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			db, err := app.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", db.Dialect())
			return nil
		},
	}

	return cmd
}
