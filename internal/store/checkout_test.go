package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

var referencePattern = regexp.MustCompile(`^[0-9A-F]{10}$`)

func TestCheckoutCreatesBooking(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	result, err := store.Checkout(ctx, fixture.checkout("A", "C",
		SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 2},
		SeatRequest{CoachType: model.CoachSeat},
		SeatRequest{CoachType: model.CoachBed},
	), nil)
	require.NoError(t, err)
	assert.False(t, result.Replayed)

	booking := result.Booking
	assert.Regexp(t, referencePattern, booking.Reference)
	assert.Equal(t, model.BookingConfirmed, booking.Status)
	assert.Equal(t, testNow, booking.BookedAt)
	assert.True(t, decimal.RequireFromString("45.50").Equal(booking.TotalAmount), booking.TotalAmount.String())
	require.Len(t, booking.Tickets, 3)
	assert.Equal(t, 2, booking.Tickets[0].SeatNumber)
	assert.Equal(t, fixture.seat.ID, booking.Tickets[1].CoachID)
	assert.Equal(t, 1, booking.Tickets[1].SeatNumber)
	assert.Equal(t, fixture.bed.ID, booking.Tickets[2].CoachID)

	passenger, err := store.GetPassenger(ctx, booking.PassengerID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", passenger.Email)

	stored, err := store.GetBookingByReference(ctx, booking.Reference)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, stored.ID)
	assert.Len(t, stored.Tickets, 3)
}

func TestCheckoutRollsBackOnTakenSeat(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	_, err := store.Checkout(ctx, fixture.checkout("A", "C", SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 1}), nil)
	require.NoError(t, err)
	passengers, bookings, tickets := count(t, store, "passengers"), count(t, store, "bookings"), count(t, store, "tickets")

	_, err = store.Checkout(ctx, fixture.checkout("B", "D",
		SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 2},
		SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 1},
	), nil)
	assert.ErrorIs(t, err, ErrSeatTaken)

	assert.Equal(t, passengers, count(t, store, "passengers"))
	assert.Equal(t, bookings, count(t, store, "bookings"))
	assert.Equal(t, tickets, count(t, store, "tickets"))
}

func TestCheckoutSegmentsShareSeats(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)
	seatOne := SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 1}

	_, err := store.Checkout(ctx, fixture.checkout("A", "B", seatOne), nil)
	require.NoError(t, err)

	_, err = store.Checkout(ctx, fixture.checkout("B", "D", seatOne), nil)
	require.NoError(t, err, "A-B and B-D do not overlap")

	_, err = store.Checkout(ctx, fixture.checkout("A", "C", seatOne), nil)
	assert.ErrorIs(t, err, ErrSeatTaken)

	seatMap, err := store.SeatMap(ctx, fixture.schedule.ID, fixture.station("C"), fixture.station("D"))
	require.NoError(t, err)
	require.Len(t, seatMap.Coaches, 2)
	seats := seatMap.Coaches[1]
	assert.Equal(t, fixture.seat.ID, seats.Coach.ID)
	assert.Equal(t, []int{1}, seats.Taken)
	assert.Equal(t, []int{2}, seats.Free)
}

func TestCheckoutRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	cases := map[string]CheckoutRequest{
		"no seats":       fixture.checkout("A", "B"),
		"reversed":       fixture.checkout("C", "A", SeatRequest{CoachType: model.CoachSeat}),
		"seat too high":  fixture.checkout("A", "B", SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 3}),
		"duplicate seat": fixture.checkout("A", "B", SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 1}, SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 1}),
		"foreign coach":  fixture.checkout("A", "B", SeatRequest{CoachID: 9999, SeatNumber: 1}),
		"type mismatch":  fixture.checkout("A", "B", SeatRequest{CoachID: fixture.bed.ID, CoachType: model.CoachSeat, SeatNumber: 1}),
	}
	for name, request := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := store.Checkout(ctx, request, nil)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	both := fixture.checkout("A", "B", SeatRequest{CoachType: model.CoachSeat})
	both.PassengerID = 1
	_, err := store.Checkout(ctx, both, nil)
	assert.ErrorIs(t, err, ErrInvalid)

	missing := fixture.checkout("A", "B", SeatRequest{CoachType: model.CoachSeat})
	missing.ScheduleID = 9999
	_, err = store.Checkout(ctx, missing, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckoutSoldOut(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	_, err := store.Checkout(ctx, fixture.checkout("A", "D", SeatRequest{CoachType: model.CoachBed}), nil)
	require.NoError(t, err)

	_, err = store.Checkout(ctx, fixture.checkout("B", "C", SeatRequest{CoachType: model.CoachBed}), nil)
	assert.ErrorIs(t, err, ErrSoldOut)
}

func TestCheckoutRequiresBookableSchedule(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	_, _, err := store.ApplyScheduleStatus(ctx, "trip-101", model.StatusCancelled, 0)
	require.NoError(t, err)

	_, err = store.Checkout(ctx, fixture.checkout("A", "B", SeatRequest{CoachType: model.CoachSeat}), nil)
	assert.ErrorIs(t, err, ErrNotBookable)
}

func TestCheckoutExistingPassengerOwnership(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	owner, err := store.CreateUser(ctx, model.User{Email: "owner@example.com", Name: "Owner", Role: model.RoleCustomer, PasswordHash: "h"})
	require.NoError(t, err)
	other, err := store.CreateUser(ctx, model.User{Email: "other@example.com", Name: "Other", Role: model.RoleCustomer, PasswordHash: "h"})
	require.NoError(t, err)
	passenger, err := store.CreatePassenger(ctx, model.Passenger{UserID: &owner.ID, Name: "Kid"})
	require.NoError(t, err)

	request := fixture.checkout("A", "B", SeatRequest{CoachType: model.CoachSeat})
	request.Passenger = nil
	request.PassengerID = passenger.ID
	request.UserID = &other.ID
	request.OwnPassengersOnly = true
	_, err = store.Checkout(ctx, request, nil)
	assert.ErrorIs(t, err, ErrInvalid)

	request.UserID = &owner.ID
	result, err := store.Checkout(ctx, request, nil)
	require.NoError(t, err)
	assert.Equal(t, passenger.ID, result.Booking.PassengerID)
	assert.True(t, result.Booking.OwnedBy(owner.ID))
}

func TestCheckoutIdempotency(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)
	request := fixture.checkout("A", "B", SeatRequest{CoachType: model.CoachSeat})
	key := &IdempotencyKey{Scope: "user:1", Key: "retry-1", Fingerprint: "f1"}

	first, err := store.Checkout(ctx, request, key)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := store.Checkout(ctx, request, key)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Booking.ID, second.Booking.ID)
	assert.Equal(t, first.Booking.Reference, second.Booking.Reference)
	assert.Equal(t, 1, count(t, store, "bookings"))
	assert.Equal(t, 1, count(t, store, "tickets"))

	_, err = store.Checkout(ctx, request, &IdempotencyKey{Scope: "user:1", Key: "retry-1", Fingerprint: "f2"})
	assert.ErrorIs(t, err, ErrIdempotencyMismatch)

	otherScope, err := store.Checkout(ctx, request, &IdempotencyKey{Scope: "user:2", Key: "retry-1", Fingerprint: "f2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Booking.ID, otherScope.Booking.ID)
}

func TestCancelBookingFreesSeats(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	result, err := store.Checkout(ctx, fixture.checkout("A", "D", SeatRequest{CoachType: model.CoachBed}), nil)
	require.NoError(t, err)

	cancelled, err := store.CancelBooking(ctx, result.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.True(t, result.Booking.TotalAmount.Equal(cancelled.TotalAmount))
	for _, ticket := range cancelled.Tickets {
		assert.Equal(t, model.TicketCancelled, ticket.Status)
	}

	again, err := store.CancelBooking(ctx, result.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, cancelled, again)

	_, err = store.Checkout(ctx, fixture.checkout("A", "D", SeatRequest{CoachType: model.CoachBed}), nil)
	require.NoError(t, err)

	cancelled.Status = model.BookingConfirmed
	_, err = store.UpdateBooking(ctx, cancelled)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestTicketLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	result, err := store.Checkout(ctx, fixture.checkout("A", "C", SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 1}), nil)
	require.NoError(t, err)
	booking := result.Booking

	added, err := store.CreateTicket(ctx, model.Ticket{
		BookingID:          booking.ID,
		CoachID:            fixture.bed.ID,
		DepartureStationID: fixture.station("A"),
		ArrivalStationID:   fixture.station("C"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added.SeatNumber)
	assert.True(t, fixture.bed.Price.Equal(added.Price))

	withAdded, err := store.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("35.50").Equal(withAdded.TotalAmount), withAdded.TotalAmount.String())

	added.Status = model.TicketCancelled
	_, err = store.UpdateTicket(ctx, added)
	require.NoError(t, err)

	// Someone else takes the bed while the ticket is cancelled.
	_, err = store.Checkout(ctx, fixture.checkout("B", "D", SeatRequest{CoachType: model.CoachBed}), nil)
	require.NoError(t, err)

	added.Status = model.TicketActive
	_, err = store.UpdateTicket(ctx, added)
	assert.ErrorIs(t, err, ErrSeatTaken)

	require.NoError(t, store.DeleteTicket(ctx, added.ID))
	afterDelete, err := store.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Len(t, afterDelete.Tickets, 1)
	assert.True(t, fixture.seat.Price.Equal(afterDelete.TotalAmount))

	mine, err := store.ListTickets(ctx, TicketFilter{ScheduleID: fixture.schedule.ID, Status: model.TicketActive}, Page{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestSearchTrains(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	_, err := store.Checkout(ctx, fixture.checkout("A", "C", SeatRequest{CoachType: model.CoachSeat}), nil)
	require.NoError(t, err)

	results, err := store.SearchTrains(ctx, fixture.station("B"), fixture.station("D"), testDeparture)
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, fixture.schedule.ID, result.ScheduleID)
	assert.Equal(t, "101", result.Train.Number)
	assert.Equal(t, testDeparture.Add(65*time.Minute), result.DepartureTime)
	assert.Equal(t, testDeparture.Add(3*time.Hour), result.ArrivalTime)
	assert.Equal(t, 2, result.Stops)
	assert.Equal(t, 3, result.TotalSeats)
	assert.Equal(t, 2, result.AvailableSeats)
	require.Len(t, result.Coaches, 2)
	assert.Equal(t, model.CoachSeat, result.Coaches[0].Type)
	assert.Equal(t, 1, result.Coaches[0].Booked)
	assert.Equal(t, 1, result.Coaches[0].Available)
	require.NotNil(t, result.LowestPrice)
	assert.True(t, fixture.seat.Price.Equal(*result.LowestPrice))

	results, err = store.SearchTrains(ctx, fixture.station("C"), fixture.station("D"), testDeparture)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].AvailableSeats, "A-C ticket does not block C-D")

	results, err = store.SearchTrains(ctx, fixture.station("D"), fixture.station("A"), testDeparture)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.SearchTrains(ctx, fixture.station("A"), fixture.station("D"), testDeparture.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = store.SearchTrains(ctx, fixture.station("A"), fixture.station("A"), testDeparture)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSearchSkipsCancelledSchedules(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	_, _, err := store.ApplyScheduleStatus(ctx, "trip-101", model.StatusCancelled, 0)
	require.NoError(t, err)

	results, err := store.SearchTrains(ctx, fixture.station("A"), fixture.station("D"), testDeparture)
	require.NoError(t, err)
	assert.Empty(t, results)
}
