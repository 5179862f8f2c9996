package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/store"
)

func NewTrainsCmd(app *CtlApp) *cobra.Command {
	var query string
	var limit int

	cmd := &cobra.Command{
		Use:   "trains",
		Short: "List trains with their coach capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(cmd, func(ctx context.Context, ticketingStore *store.Store) error {
				trains, err := ticketingStore.ListTrains(ctx, store.TrainFilter{Query: query}, store.Page{Limit: limit})
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(trains))
				for _, train := range trains {
					coaches, err := ticketingStore.ListCoaches(ctx, store.CoachFilter{TrainID: train.ID}, store.Page{Limit: store.MaxPageSize})
					if err != nil {
						return err
					}
					seats := 0
					for _, coach := range coaches {
						seats += coach.Capacity
					}
					rows = append(rows, []string{
						train.Number,
						train.Name,
						train.Type,
						strconv.Itoa(len(coaches)),
						strconv.Itoa(seats),
					})
				}
				printTable(cmd.OutOrStdout(), []string{"Number", "Name", "Type", "Coaches", "Seats"}, rows)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&query, "q", "", "Search text")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultPageSize, "Maximum rows")

	return cmd
}
