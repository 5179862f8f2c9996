package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

func NewSearchCmd(app *CtlApp) *cobra.Command {
	var from, to, date string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find trains between two stations on a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := app.now().UTC()
			if date != "" {
				parsed, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				day = parsed
			}

			return app.withStore(cmd, func(ctx context.Context, ticketingStore *store.Store) error {
				fromStation, err := stationByCode(ctx, ticketingStore, from)
				if err != nil {
					return err
				}
				toStation, err := stationByCode(ctx, ticketingStore, to)
				if err != nil {
					return err
				}

				results, err := ticketingStore.SearchTrains(ctx, fromStation.ID, toStation.ID, day)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "no trains from %s to %s on %s\n", fromStation.Code, toStation.Code, day.Format(time.DateOnly))
					return nil
				}

				rows := make([][]string, 0, len(results))
				for _, result := range results {
					rows = append(rows, []string{
						strconv.FormatInt(result.ScheduleID, 10),
						result.Train.Number + " " + result.Train.Name,
						formatTime(result.DepartureTime),
						formatTime(result.ArrivalTime),
						strconv.Itoa(result.Stops),
						scheduleStatus(result.Status, result.DelayMinutes),
						fmt.Sprintf("%d/%d", result.AvailableSeats, result.TotalSeats),
						lowestPrice(result),
					})
				}
				printTable(cmd.OutOrStdout(),
					[]string{"Schedule", "Train", "Departs", "Arrives", "Stops", "Status", "Free", "From"},
					rows,
				)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Departure station code")
	cmd.Flags().StringVar(&to, "to", "", "Arrival station code")
	cmd.Flags().StringVar(&date, "date", "", "Travel day as YYYY-MM-DD (default today, UTC)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

func stationByCode(ctx context.Context, ticketingStore *store.Store, code string) (model.Station, error) {
	station, err := ticketingStore.GetStationByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return model.Station{}, fmt.Errorf("unknown station %q", code)
	}
	return station, err
}

func scheduleStatus(status model.ScheduleStatus, delayMinutes int) string {
	if status == model.StatusDelayed && delayMinutes > 0 {
		return fmt.Sprintf("%s +%dm", status, delayMinutes)
	}
	return string(status)
}

func lowestPrice(result model.TrainSearchResult) string {
	if result.LowestPrice == nil {
		return "-"
	}
	return result.LowestPrice.StringFixed(2)
}
