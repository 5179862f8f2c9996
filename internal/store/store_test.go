package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
)

var (
	testNow       = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	testDeparture = time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)
)

func openStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewDatabaseConnection(ctx, database.SQLite, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return New(db).WithClock(func() time.Time { return testNow })
}

// line is a train running A -> B -> C -> D with a two-seat coach and a
// one-bed coach.
type line struct {
	stations []model.Station
	train    model.Train
	seat     model.Coach
	bed      model.Coach
	schedule model.Schedule
}

func at(t time.Time) *time.Time {
	return &t
}

func seedLine(t *testing.T, store *Store) line {
	t.Helper()
	ctx := context.Background()
	var fixture line

	for _, code := range []string{"A", "B", "C", "D"} {
		station, err := store.CreateStation(ctx, model.Station{Code: code, Name: "Station " + code, City: "City " + code})
		require.NoError(t, err)
		fixture.stations = append(fixture.stations, station)
	}

	var err error
	fixture.train, err = store.CreateTrain(ctx, model.Train{Number: "101", Name: "Coastal", Type: "express"})
	require.NoError(t, err)
	fixture.seat, err = store.CreateCoach(ctx, model.Coach{
		TrainID: fixture.train.ID, Label: "S1", Type: model.CoachSeat, Capacity: 2, Price: decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)
	fixture.bed, err = store.CreateCoach(ctx, model.Coach{
		TrainID: fixture.train.ID, Label: "B1", Type: model.CoachBed, Capacity: 1, Price: decimal.RequireFromString("25.50"),
	})
	require.NoError(t, err)

	hour := func(h int, m int) time.Time {
		return testDeparture.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	}
	stops := []model.Journey{
		{StationID: fixture.stations[0].ID, StopOrder: 0, DepartureTime: at(hour(0, 0))},
		{StationID: fixture.stations[1].ID, StopOrder: 1, ArrivalTime: at(hour(1, 0)), DepartureTime: at(hour(1, 5))},
		{StationID: fixture.stations[2].ID, StopOrder: 2, ArrivalTime: at(hour(2, 0)), DepartureTime: at(hour(2, 5))},
		{StationID: fixture.stations[3].ID, StopOrder: 3, ArrivalTime: at(hour(3, 0))},
	}
	tripID := "trip-101"
	fixture.schedule, _, err = store.CreateSchedule(ctx, model.Schedule{
		TrainID:        fixture.train.ID,
		StartStationID: fixture.stations[0].ID,
		EndStationID:   fixture.stations[3].ID,
		DepartureTime:  hour(0, 0),
		ArrivalTime:    hour(3, 0),
		ExternalTripID: &tripID,
	}, stops)
	require.NoError(t, err)
	return fixture
}

func (fixture line) station(code string) int64 {
	for _, station := range fixture.stations {
		if station.Code == code {
			return station.ID
		}
	}
	panic("unknown station " + code)
}

func (fixture line) checkout(from, to string, seats ...SeatRequest) CheckoutRequest {
	return CheckoutRequest{
		ScheduleID:    fixture.schedule.ID,
		FromStationID: fixture.station(from),
		ToStationID:   fixture.station(to),
		Passenger:     &model.Passenger{Name: "Ada Lovelace", Email: "ADA@example.com"},
		Seats:         seats,
	}
}

func count(t *testing.T, store *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, store.DB().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultPageSize}, Page{}.normalize())
	assert.Equal(t, Page{Limit: MaxPageSize, Offset: 0}, Page{Limit: 10000, Offset: -3}.normalize())
	assert.Equal(t, Page{Limit: 5, Offset: 10}, Page{Limit: 5, Offset: 10}.normalize())
}

func TestWhereClauseNumbersPlaceholders(t *testing.T) {
	var where whereClause
	where.add("a = ?", 1)
	where.add("(b LIKE ? OR c LIKE ?)", "x", "x")
	query := where.sql() + where.paginate(Page{Limit: 3})

	assert.Equal(t, " WHERE a = $1 AND (b LIKE $2 OR c LIKE $3) LIMIT $4 OFFSET $5", query)
	assert.Equal(t, []any{1, "x", "x", 3, 0}, where.args)
}

func TestStationLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	station, err := store.CreateStation(ctx, model.Station{Code: " nyp ", Name: "New York Penn", City: "New York"})
	require.NoError(t, err)
	assert.Equal(t, "NYP", station.Code)
	assert.Equal(t, testNow, station.CreatedAt)

	_, err = store.CreateStation(ctx, model.Station{Code: "NYP", Name: "Duplicate"})
	assert.ErrorIs(t, err, ErrConflict)

	byCode, err := store.GetStationByCode(ctx, "nyp")
	require.NoError(t, err)
	assert.Equal(t, station, byCode)

	found, err := store.ListStations(ctx, StationFilter{Query: "PENN"}, Page{})
	require.NoError(t, err)
	require.Len(t, found, 1)

	station.Name = "Moynihan"
	updated, err := store.UpdateStation(ctx, station)
	require.NoError(t, err)
	assert.Equal(t, "Moynihan", updated.Name)

	require.NoError(t, store.DeleteStation(ctx, station.ID))
	_, err = store.GetStation(ctx, station.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteStation(ctx, station.ID), ErrNotFound)
}

func TestDeleteReferencedStation(t *testing.T) {
	store := openStore(t)
	fixture := seedLine(t, store)

	err := store.DeleteStation(context.Background(), fixture.station("A"))
	assert.ErrorIs(t, err, ErrReferenced)
}

func TestCreateScheduleRejectsBadStops(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	base := model.Schedule{
		TrainID:        fixture.train.ID,
		StartStationID: fixture.station("A"),
		EndStationID:   fixture.station("C"),
		DepartureTime:  testDeparture,
		ArrivalTime:    testDeparture.Add(2 * time.Hour),
	}

	_, _, err := store.CreateSchedule(ctx, base, []model.Journey{
		{StationID: fixture.station("C"), StopOrder: 0, DepartureTime: at(testDeparture)},
		{StationID: fixture.station("A"), StopOrder: 1, ArrivalTime: at(testDeparture.Add(time.Hour))},
	})
	assert.ErrorIs(t, err, ErrInvalid)

	backwards := base
	backwards.ArrivalTime = testDeparture.Add(-time.Hour)
	_, _, err = store.CreateSchedule(ctx, backwards, nil)
	assert.ErrorIs(t, err, ErrInvalid)

	schedule, stops, err := store.CreateSchedule(ctx, base, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnTime, schedule.Status)
	require.Len(t, stops, 2)
	assert.Equal(t, fixture.station("A"), stops[0].StationID)
	assert.Equal(t, fixture.station("C"), stops[1].StationID)
}

func TestListSchedulesByDate(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	sameDay := testDeparture.Add(10 * time.Hour)
	found, err := store.ListSchedules(ctx, ScheduleFilter{Date: &sameDay}, Page{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, fixture.schedule.ID, found[0].ID)

	nextDay := testDeparture.AddDate(0, 0, 1)
	found, err = store.ListSchedules(ctx, ScheduleFilter{Date: &nextDay}, Page{})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = store.ListSchedules(ctx, ScheduleFilter{ExternalTripID: "trip-101"}, Page{})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestSegment(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	from, to, err := segment(ctx, store.db, fixture.schedule.ID, fixture.station("B"), fixture.station("D"))
	require.NoError(t, err)
	assert.Equal(t, 1, from)
	assert.Equal(t, 3, to)

	_, _, err = segment(ctx, store.db, fixture.schedule.ID, fixture.station("C"), fixture.station("B"))
	assert.ErrorIs(t, err, ErrInvalid)

	other, err := store.CreateStation(ctx, model.Station{Code: "Z", Name: "Nowhere"})
	require.NoError(t, err)
	_, _, err = segment(ctx, store.db, fixture.schedule.ID, fixture.station("A"), other.ID)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateCoachBelowSoldSeat(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	_, err := store.Checkout(ctx, fixture.checkout("A", "D", SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 2}), nil)
	require.NoError(t, err)

	shrunk := fixture.seat
	shrunk.Capacity = 1
	_, err = store.UpdateCoach(ctx, shrunk)
	assert.ErrorIs(t, err, ErrConflict)

	grown := fixture.seat
	grown.Capacity = 40
	updated, err := store.UpdateCoach(ctx, grown)
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Capacity)
}

func TestTrainChangesWithActiveTickets(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	fixture := seedLine(t, store)

	result, err := store.Checkout(ctx, fixture.checkout("A", "D", SeatRequest{CoachID: fixture.seat.ID, SeatNumber: 1}), nil)
	require.NoError(t, err)
	other, err := store.CreateTrain(ctx, model.Train{Number: "202", Name: "Inland", Type: "local"})
	require.NoError(t, err)

	movedCoach := fixture.seat
	movedCoach.TrainID = other.ID
	_, err = store.UpdateCoach(ctx, movedCoach)
	assert.ErrorIs(t, err, ErrConflict)

	movedSchedule := fixture.schedule
	movedSchedule.TrainID = other.ID
	_, err = store.UpdateSchedule(ctx, movedSchedule)
	assert.ErrorIs(t, err, ErrConflict)

	unsold := fixture.bed
	unsold.TrainID = other.ID
	updated, err := store.UpdateCoach(ctx, unsold)
	require.NoError(t, err)
	assert.Equal(t, other.ID, updated.TrainID)

	seatMap, err := store.SeatMap(ctx, fixture.schedule.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, seatMap.Coaches, 1)
	assert.Equal(t, []int{1}, seatMap.Coaches[0].Taken)

	_, err = store.CancelBooking(ctx, result.Booking.ID)
	require.NoError(t, err)
	rescheduled, err := store.UpdateSchedule(ctx, movedSchedule)
	require.NoError(t, err)
	assert.Equal(t, other.ID, rescheduled.TrainID)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	user, err := store.CreateUser(ctx, model.User{Email: " Grace@Example.com", Name: "Grace", Role: model.RoleCustomer, PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", user.Email)

	_, err = store.CreateUser(ctx, model.User{Email: "x@example.com", Name: "X", Role: "root", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrInvalid)

	expiresAt, err := store.CreateSession(ctx, "token-hash", user.ID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(time.Hour), expiresAt)

	owner, err := store.SessionUser(ctx, "token-hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, owner.ID)

	store.WithClock(func() time.Time { return testNow.Add(2 * time.Hour) })
	_, err = store.SessionUser(ctx, "token-hash")
	assert.ErrorIs(t, err, ErrNotFound)

	purged, err := store.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	assert.ErrorIs(t, store.DeleteSession(ctx, "token-hash"), ErrNotFound)
}

func TestUpdateUserKeepsPasswordHash(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	user, err := store.CreateUser(ctx, model.User{Email: "a@example.com", Name: "A", Role: model.RoleCustomer, PasswordHash: "secret-hash"})
	require.NoError(t, err)

	user.Name = "Renamed"
	user.PasswordHash = ""
	updated, err := store.UpdateUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "secret-hash", updated.PasswordHash)
}
