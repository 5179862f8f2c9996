package cmd

import (
	"context"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/store"
)

func NewDashboardCmd(app *CtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize sales and catalog size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(cmd, func(ctx context.Context, ticketingStore *store.Store) error {
				dashboard, err := ticketingStore.Dashboard(ctx, app.now())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fields := [][2]string{
					{"stations", strconv.FormatInt(dashboard.Stations, 10)},
					{"trains", strconv.FormatInt(dashboard.Trains, 10)},
					{"coaches", strconv.FormatInt(dashboard.Coaches, 10)},
					{"schedules", strconv.FormatInt(dashboard.Schedules, 10)},
					{"departing today", strconv.FormatInt(dashboard.DepartingToday, 10)},
					{"users", strconv.FormatInt(dashboard.Users, 10)},
					{"passengers", strconv.FormatInt(dashboard.Passengers, 10)},
					{"confirmed bookings", strconv.FormatInt(dashboard.ConfirmedBookings, 10)},
					{"active tickets", strconv.FormatInt(dashboard.ActiveTickets, 10)},
					{"revenue", dashboard.Revenue.StringFixed(2)},
				}
				statuses := make([]string, 0, len(dashboard.ScheduleStatuses))
				for status := range dashboard.ScheduleStatuses {
					statuses = append(statuses, status)
				}
				sort.Strings(statuses)
				for _, status := range statuses {
					fields = append(fields, [2]string{"schedules " + status, strconv.FormatInt(dashboard.ScheduleStatuses[status], 10)})
				}
				printFields(out, fields)

				if len(dashboard.TopRoutes) > 0 {
					rows := make([][]string, 0, len(dashboard.TopRoutes))
					for _, route := range dashboard.TopRoutes {
						rows = append(rows, []string{route.From, route.To, strconv.FormatInt(route.Tickets, 10)})
					}
					printTable(out, []string{"From", "To", "Tickets"}, rows)
				}

				if len(dashboard.RecentBookings) > 0 {
					rows := make([][]string, 0, len(dashboard.RecentBookings))
					for _, booking := range dashboard.RecentBookings {
						rows = append(rows, []string{
							booking.Reference,
							booking.PassengerName,
							booking.TrainNumber,
							string(booking.Status),
							booking.TotalAmount.StringFixed(2),
							formatTime(booking.BookedAt),
						})
					}
					printTable(out, []string{"Reference", "Passenger", "Train", "Status", "Total", "Booked"}, rows)
				}
				return nil
			})
		},
	}

	return cmd
}
