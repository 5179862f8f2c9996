package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	first, err := store.Checkout(ctx, fixture.checkout("A", "D", SeatRequest{CoachType: model.CoachSeat}, SeatRequest{CoachType: model.CoachBed}), nil)
	require.NoError(t, err)

	store.WithClock(func() time.Time { return testNow.AddDate(0, 0, -2) })
	second, err := store.Checkout(ctx, fixture.checkout("A", "B", SeatRequest{CoachType: model.CoachSeat}), nil)
	require.NoError(t, err)
	_, err = store.CancelBooking(ctx, second.Booking.ID)
	require.NoError(t, err)

	dashboard, err := store.Dashboard(ctx, testNow)
	require.NoError(t, err)

	assert.Equal(t, testNow, dashboard.GeneratedAt)
	assert.Equal(t, int64(4), dashboard.Stations)
	assert.Equal(t, int64(1), dashboard.Trains)
	assert.Equal(t, int64(2), dashboard.Coaches)
	assert.Equal(t, int64(1), dashboard.Schedules)
	assert.Equal(t, int64(2), dashboard.Passengers)
	assert.Equal(t, int64(1), dashboard.ConfirmedBookings)
	assert.Equal(t, int64(2), dashboard.ActiveTickets)
	assert.True(t, decimal.RequireFromString("35.50").Equal(dashboard.Revenue), dashboard.Revenue.String())
	assert.Equal(t, int64(0), dashboard.DepartingToday)
	assert.Equal(t, map[string]int64{"on-time": 1}, dashboard.ScheduleStatuses)

	require.Len(t, dashboard.BookingsByDay, 7)
	assert.Equal(t, "2026-10-13", dashboard.BookingsByDay[0].Date)
	twoDaysAgo := dashboard.BookingsByDay[4]
	assert.Equal(t, "2026-10-17", twoDaysAgo.Date)
	assert.Equal(t, 1, twoDaysAgo.Bookings)
	assert.True(t, twoDaysAgo.Revenue.IsZero(), "cancelled bookings earn nothing")
	today := dashboard.BookingsByDay[6]
	assert.Equal(t, 1, today.Bookings)
	assert.True(t, first.Booking.TotalAmount.Equal(today.Revenue))

	require.Len(t, dashboard.TopRoutes, 1)
	assert.Equal(t, model.RouteSales{From: "Station A", To: "Station D", Tickets: 2}, dashboard.TopRoutes[0])

	require.Len(t, dashboard.RecentBookings, 2)
	assert.Equal(t, first.Booking.Reference, dashboard.RecentBookings[0].Reference)
	assert.Equal(t, "Ada Lovelace", dashboard.RecentBookings[0].PassengerName)
	assert.Equal(t, "101", dashboard.RecentBookings[0].TrainNumber)

	tomorrow, err := store.Dashboard(ctx, testDeparture)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tomorrow.DepartingToday)
}

func TestApplyScheduleStatus(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	schedule, changed, err := store.ApplyScheduleStatus(ctx, "trip-101", model.StatusDelayed, 12)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.StatusDelayed, schedule.Status)
	assert.Equal(t, 12, schedule.DelayMinutes)

	_, changed, err = store.ApplyScheduleStatus(ctx, "trip-101", model.StatusDelayed, 12)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = store.ApplyScheduleStatus(ctx, "unknown-trip", model.StatusDelayed, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = store.ApplyScheduleStatus(ctx, "trip-101", "late", 1)
	assert.ErrorIs(t, err, ErrInvalid)

	completed := schedule
	completed.Status = model.StatusCompleted
	_, err = store.UpdateSchedule(ctx, completed)
	require.NoError(t, err)

	schedule, changed, err = store.ApplyScheduleStatus(ctx, "trip-101", model.StatusCancelled, 0)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.StatusCompleted, schedule.Status)

	stored, err := store.GetSchedule(ctx, fixture.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, stored.Status)
}

func TestRecordStatusEvents(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	events := []StatusEvent{
		{ScheduleID: fixture.schedule.ID, Status: model.StatusOnTime, ObservedAt: testNow},
		{ScheduleID: fixture.schedule.ID, Status: model.StatusDelayed, DelayMinutes: 7, ObservedAt: testNow.Add(time.Minute)},
	}
	copied, err := store.RecordStatusEvents(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, int64(2), copied)

	stored, err := store.ListStatusEvents(ctx, fixture.schedule.ID, Page{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, events[1], stored[0])

	copied, err = store.RecordStatusEvents(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, copied)
}
