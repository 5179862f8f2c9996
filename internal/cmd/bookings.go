package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

func NewBookingsCmd(app *CtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Inspect bookings",
	}

	cmd.AddCommand(newBookingsShowCmd(app))
	cmd.AddCommand(newBookingsListCmd(app))

	return cmd
}

func newBookingsShowCmd(app *CtlApp) *cobra.Command {
	return &cobra.Command{
		Use:   "show <reference>",
		Short: "Show a booking and its tickets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(cmd, func(ctx context.Context, ticketingStore *store.Store) error {
				booking, err := ticketingStore.GetBookingByReference(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no booking with reference %q", args[0])
				}
				if err != nil {
					return err
				}
				passenger, err := ticketingStore.GetPassenger(ctx, booking.PassengerID)
				if err != nil {
					return err
				}
				schedule, err := ticketingStore.GetSchedule(ctx, booking.ScheduleID)
				if err != nil {
					return err
				}
				train, err := ticketingStore.GetTrain(ctx, schedule.TrainID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				printFields(out, [][2]string{
					{"reference", booking.Reference},
					{"status", string(booking.Status)},
					{"passenger", passenger.Name + " <" + passenger.Email + ">"},
					{"train", train.Number + " " + train.Name},
					{"departs", formatTime(schedule.DepartureTime)},
					{"schedule", scheduleStatus(schedule.Status, schedule.DelayMinutes)},
					{"total", booking.TotalAmount.StringFixed(2)},
					{"booked", formatTime(booking.BookedAt)},
				})

				names := stationNames{store: ticketingStore, codes: map[int64]string{}}
				coachLabels := map[int64]string{}
				rows := make([][]string, 0, len(booking.Tickets))
				for _, ticket := range booking.Tickets {
					label, ok := coachLabels[ticket.CoachID]
					if !ok {
						coach, err := ticketingStore.GetCoach(ctx, ticket.CoachID)
						if err != nil {
							return err
						}
						label = coach.Label
						coachLabels[ticket.CoachID] = label
					}
					from, err := names.code(ctx, ticket.DepartureStationID)
					if err != nil {
						return err
					}
					to, err := names.code(ctx, ticket.ArrivalStationID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						label,
						strconv.Itoa(ticket.SeatNumber),
						from + " → " + to,
						ticket.Price.StringFixed(2),
						string(ticket.Status),
					})
				}
				printTable(out, []string{"Coach", "Seat", "Segment", "Price", "Status"}, rows)
				return nil
			})
		},
	}
}

func newBookingsListCmd(app *CtlApp) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent bookings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(cmd, func(ctx context.Context, ticketingStore *store.Store) error {
				bookings, err := ticketingStore.ListBookings(ctx,
					store.BookingFilter{Status: model.BookingStatus(status)},
					store.Page{Limit: limit},
				)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(bookings))
				for _, booking := range bookings {
					rows = append(rows, []string{
						booking.Reference,
						strconv.FormatInt(booking.ScheduleID, 10),
						strconv.FormatInt(booking.PassengerID, 10),
						string(booking.Status),
						booking.TotalAmount.StringFixed(2),
						formatTime(booking.BookedAt),
					})
				}
				printTable(cmd.OutOrStdout(), []string{"Reference", "Schedule", "Passenger", "Status", "Total", "Booked"}, rows)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only bookings in this status (confirmed or cancelled)")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultPageSize, "Maximum rows")

	return cmd
}

type stationNames struct {
	store *store.Store
	codes map[int64]string
}

func (names stationNames) code(ctx context.Context, id int64) (string, error) {
	if code, ok := names.codes[id]; ok {
		return code, nil
	}
	station, err := names.store.GetStation(ctx, id)
	if err != nil {
		return "", err
	}
	names.codes[id] = station.Code
	return station.Code, nil
}
