package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/store"
)

func NewStationsCmd(app *CtlApp) *cobra.Command {
	var query string
	var limit int

	cmd := &cobra.Command{
		Use:   "stations",
		Short: "List stations, optionally filtered by code, name or city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(cmd, func(ctx context.Context, ticketingStore *store.Store) error {
				stations, err := ticketingStore.ListStations(ctx, store.StationFilter{Query: query}, store.Page{Limit: limit})
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(stations))
				for _, station := range stations {
					rows = append(rows, []string{strconv.FormatInt(station.ID, 10), station.Code, station.Name, station.City})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Code", "Name", "City"}, rows)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&query, "q", "", "Search text")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultPageSize, "Maximum rows")

	return cmd
}
