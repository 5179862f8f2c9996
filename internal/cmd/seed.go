package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/seed"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

func NewSeedCmd(app *CtlApp) *cobra.Command {
	var fixturePath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load YAML fixtures (the built-in demo network by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, err := seed.Load(fixturePath)
			if err != nil {
				return err
			}
			logger := app.logger(cmd.ErrOrStderr())

			return app.withStore(cmd, func(ctx context.Context, ticketingStore *store.Store) error {
				summary, err := common.RuntimeBenchmark(logger, "seed", func() (seed.Summary, error) {
					return seed.Apply(ctx, ticketingStore, dataset, app.now())
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"seeded: %d stations, %d trains, %d coaches, %d schedules, %d users (%d already present)\n",
					summary.Stations, summary.Trains, summary.Coaches, summary.Schedules, summary.Users, summary.Skipped,
				)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fixturePath, "file", "", "YAML fixture file")

	return cmd
}
