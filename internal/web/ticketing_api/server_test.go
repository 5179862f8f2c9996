package ticketing_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

var (
	testNow       = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	testDeparture = time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)
)

type harness struct {
	t          *testing.T
	store      *store.Store
	handler    http.Handler
	adminToken string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDatabaseConnection(ctx, database.SQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	ticketingStore := store.New(db).WithClock(func() time.Time { return testNow })
	authorizer, err := authz.NewAuthorizer(ctx)
	require.NoError(t, err)

	server, err := NewServer(Options{
		Store:      ticketingStore,
		Authorizer: authorizer,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        func() time.Time { return testNow },
	})
	require.NoError(t, err)

	hash, err := authz.HashPassword("admin-password")
	require.NoError(t, err)
	_, err = ticketingStore.CreateUser(ctx, model.User{Email: "admin@example.com", Name: "Admin", Role: model.RoleAdmin, PasswordHash: hash})
	require.NoError(t, err)

	h := &harness{t: t, store: ticketingStore, handler: server.Handler()}
	h.adminToken = h.login("admin@example.com", "admin-password")
	return h
}

func (h *harness) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader = http.NoBody
	switch body := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(body)
	default:
		encoded, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(encoded)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		request.Header.Set(headers[i], headers[i+1])
	}
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, request)
	return recorder
}

func (h *harness) decodeInto(recorder *httptest.ResponseRecorder, status int, target any) {
	h.t.Helper()
	require.Equal(h.t, status, recorder.Code, recorder.Body.String())
	if target != nil {
		require.NoError(h.t, json.Unmarshal(recorder.Body.Bytes(), target))
	}
}

func (h *harness) login(email, password string) string {
	h.t.Helper()
	var session sessionResponse
	h.decodeInto(h.do("POST", "/api/auth/login", "", loginInput{Email: email, Password: password}), http.StatusOK, &session)
	return session.Token
}

func (h *harness) register(email string) (string, model.User) {
	h.t.Helper()
	var session sessionResponse
	input := registerInput{Email: email, Name: "Customer " + email, Password: "customer-password"}
	h.decodeInto(h.do("POST", "/api/auth/register", "", input), http.StatusCreated, &session)
	return session.Token, session.User
}

type network struct {
	stations []model.Station
	train    model.Train
	seat     model.Coach
	bed      model.Coach
	schedule model.Schedule
}

// seed builds a train A -> B -> C with a two-seat coach and a one-bed coach
// through the admin API.
func (h *harness) seed() network {
	h.t.Helper()
	var fixture network
	for _, code := range []string{"A", "B", "C"} {
		var station model.Station
		h.decodeInto(h.do("POST", "/api/stations", h.adminToken, stationInput{Code: code, Name: "Station " + code, City: "City"}), http.StatusCreated, &station)
		fixture.stations = append(fixture.stations, station)
	}
	h.decodeInto(h.do("POST", "/api/trains", h.adminToken, trainInput{Number: "202", Name: "Inland", Type: "regional"}), http.StatusCreated, &fixture.train)
	h.decodeInto(h.do("POST", "/api/coaches", h.adminToken, coachInput{
		TrainID: fixture.train.ID, Label: "S1", Type: model.CoachSeat, Capacity: 2, Price: decimal.RequireFromString("12.50"),
	}), http.StatusCreated, &fixture.seat)
	h.decodeInto(h.do("POST", "/api/coaches", h.adminToken, coachInput{
		TrainID: fixture.train.ID, Label: "B1", Type: model.CoachBed, Capacity: 1, Price: decimal.RequireFromString("40"),
	}), http.StatusCreated, &fixture.bed)

	departure := testDeparture
	middleArrival := testDeparture.Add(time.Hour)
	middleDeparture := middleArrival.Add(5 * time.Minute)
	arrival := testDeparture.Add(2 * time.Hour)
	var created scheduleResponse
	h.decodeInto(h.do("POST", "/api/schedules", h.adminToken, scheduleInput{
		TrainID:        fixture.train.ID,
		StartStationID: fixture.stations[0].ID,
		EndStationID:   fixture.stations[2].ID,
		DepartureTime:  departure,
		ArrivalTime:    arrival,
		Stops: []stopInput{
			{StationID: fixture.stations[0].ID, StopOrder: 0, DepartureTime: &departure},
			{StationID: fixture.stations[1].ID, StopOrder: 1, ArrivalTime: &middleArrival, DepartureTime: &middleDeparture},
			{StationID: fixture.stations[2].ID, StopOrder: 2, ArrivalTime: &arrival},
		},
	}), http.StatusCreated, &created)
	require.Len(h.t, created.Stops, 3)
	fixture.schedule = created.Schedule
	return fixture
}

func (fixture network) checkout(seats ...seatInput) checkoutInput {
	return checkoutInput{
		ScheduleID:    fixture.schedule.ID,
		FromStationID: fixture.stations[0].ID,
		ToStationID:   fixture.stations[2].ID,
		Passenger:     &passengerInput{Name: "Grace Hopper", Email: "grace@example.com"},
		Seats:         seats,
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	recorder := h.do("GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func TestAuthorization(t *testing.T) {
	h := newHarness(t)
	customer, _ := h.register("rider@example.com")

	assert.Equal(t, http.StatusOK, h.do("GET", "/api/stations", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do("POST", "/api/stations", "", stationInput{Code: "X", Name: "X"}).Code)
	assert.Equal(t, http.StatusForbidden, h.do("POST", "/api/stations", customer, stationInput{Code: "X", Name: "X"}).Code)
	assert.Equal(t, http.StatusForbidden, h.do("GET", "/api/dashboard", customer, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do("GET", "/api/auth/me", "bogus-token", nil).Code)

	var me model.User
	h.decodeInto(h.do("GET", "/api/auth/me", customer, nil), http.StatusOK, &me)
	assert.Equal(t, model.RoleCustomer, me.Role)

	assert.Equal(t, http.StatusNoContent, h.do("POST", "/api/auth/logout", customer, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do("GET", "/api/auth/me", customer, nil).Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	recorder := h.do("POST", "/api/auth/login", "", loginInput{Email: "admin@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = h.do("POST", "/api/auth/login", "", loginInput{Email: "nobody@example.com", Password: "whatever1"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	_, _ = h.register("taken@example.com")
	recorder = h.do("POST", "/api/auth/register", "", registerInput{Email: "taken@example.com", Name: "Again", Password: "another-password"})
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t)

	recorder := h.do("POST", "/api/stations", h.adminToken, `{"code":"A","name":"A","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "invalid JSON")

	recorder = h.do("POST", "/api/stations", h.adminToken, `{"code":"A"}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "name failed required")

	recorder = h.do("POST", "/api/stations", h.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "request body is empty")

	recorder = h.do("GET", "/api/stations/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = h.do("GET", "/api/stations/99", "", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = h.do("POST", "/api/coaches", h.adminToken, coachInput{TrainID: 1, Label: "X", Type: "lounge", Capacity: 1})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "type failed oneof")
}

func TestCatalogCRUD(t *testing.T) {
	h := newHarness(t)
	fixture := h.seed()

	var station model.Station
	path := fmt.Sprintf("/api/stations/%d", fixture.stations[0].ID)
	h.decodeInto(h.do("PUT", path, h.adminToken, stationInput{Code: "A", Name: "Central", City: "Metro"}), http.StatusOK, &station)
	assert.Equal(t, "Central", station.Name)

	var stations []model.Station
	h.decodeInto(h.do("GET", "/api/stations?q=central", "", nil), http.StatusOK, &stations)
	require.Len(t, stations, 1)

	assert.Equal(t, http.StatusConflict, h.do("DELETE", path, h.adminToken, nil).Code)

	var coaches []model.Coach
	h.decodeInto(h.do("GET", fmt.Sprintf("/api/trains/%d/coaches", fixture.train.ID), "", nil), http.StatusOK, &coaches)
	assert.Len(t, coaches, 2)

	var journeys []model.Journey
	h.decodeInto(h.do("GET", fmt.Sprintf("/api/schedules/%d/journeys", fixture.schedule.ID), "", nil), http.StatusOK, &journeys)
	assert.Len(t, journeys, 3)

	var schedules []model.Schedule
	h.decodeInto(h.do("GET", "/api/schedules?date=2026-10-20", "", nil), http.StatusOK, &schedules)
	assert.Len(t, schedules, 1)
	h.decodeInto(h.do("GET", "/api/schedules?date=2026-10-21", "", nil), http.StatusOK, &schedules)
	assert.Empty(t, schedules)
	assert.Equal(t, http.StatusBadRequest, h.do("GET", "/api/schedules?date=tomorrow", "", nil).Code)

	var lone model.Station
	h.decodeInto(h.do("POST", "/api/stations", h.adminToken, stationInput{Code: "Z", Name: "Unused"}), http.StatusCreated, &lone)
	assert.Equal(t, http.StatusNoContent, h.do("DELETE", fmt.Sprintf("/api/stations/%d", lone.ID), h.adminToken, nil).Code)
}

func TestSearchAndSeatMap(t *testing.T) {
	h := newHarness(t)
	fixture := h.seed()

	var results []model.TrainSearchResult
	path := fmt.Sprintf("/api/search/trains?from=%d&to=%d&date=2026-10-20", fixture.stations[1].ID, fixture.stations[2].ID)
	h.decodeInto(h.do("GET", path, "", nil), http.StatusOK, &results)
	require.Len(t, results, 1)
	assert.Equal(t, fixture.schedule.ID, results[0].ScheduleID)
	assert.Equal(t, 3, results[0].AvailableSeats)
	require.NotNil(t, results[0].LowestPrice)
	assert.Equal(t, "12.5", results[0].LowestPrice.String())

	path = fmt.Sprintf("/api/search/trains?from=%d&to=%d&date=2026-10-20", fixture.stations[2].ID, fixture.stations[0].ID)
	h.decodeInto(h.do("GET", path, "", nil), http.StatusOK, &results)
	assert.Empty(t, results)

	assert.Equal(t, http.StatusBadRequest, h.do("GET", "/api/search/trains?from=1", "", nil).Code)

	var seatMap model.SeatMap
	h.decodeInto(h.do("GET", fmt.Sprintf("/api/schedules/%d/seats", fixture.schedule.ID), "", nil), http.StatusOK, &seatMap)
	require.Len(t, seatMap.Coaches, 2)
}

func TestDepartureBoard(t *testing.T) {
	h := newHarness(t)
	fixture := h.seed()
	middle := fixture.stations[1]

	var departures []model.Departure
	h.decodeInto(h.do("GET", fmt.Sprintf("/api/stations/%d/departures?hours=24", middle.ID), "", nil), http.StatusOK, &departures)
	require.Len(t, departures, 1)
	assert.Equal(t, "202", departures[0].TrainNumber)
	assert.Equal(t, "C", departures[0].DestinationCode)
	assert.Equal(t, testDeparture.Add(65*time.Minute), departures[0].DepartureTime)

	h.decodeInto(h.do("GET", fmt.Sprintf("/api/stations/%d/departures", middle.ID), "", nil), http.StatusOK, &departures)
	assert.Empty(t, departures, "default window ends before tomorrow morning")

	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/stations/999/departures", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do("GET", fmt.Sprintf("/api/stations/%d/departures?hours=x", middle.ID), "", nil).Code)

	page := h.do("GET", "/board/b?hours=24", "", nil)
	require.Equal(t, http.StatusOK, page.Code, page.Body.String())
	assert.Contains(t, page.Header().Get("Content-Type"), "text/html")
	body := page.Body.String()
	assert.Contains(t, body, "Station B")
	assert.Contains(t, body, "202 Inland")
	assert.Contains(t, body, "09:05")
	assert.Contains(t, body, "in 21h 05m")

	partial := h.do("GET", "/board/B/partial", "", nil)
	require.Equal(t, http.StatusOK, partial.Code)
	assert.Contains(t, partial.Body.String(), "No departures")
	assert.NotContains(t, partial.Body.String(), "<html")

	assert.Equal(t, http.StatusNotFound, h.do("GET", "/board/ZZZ", "", nil).Code)
}

func TestBoardRows(t *testing.T) {
	station := model.Station{Code: "B", Name: "Station B"}
	now := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	departures := []model.Departure{
		{TrainNumber: "1", TrainName: "Early", DestinationName: "C", DepartureTime: now.Add(-2 * time.Minute), Status: model.StatusOnTime},
		{TrainNumber: "2", TrainName: "Late", DestinationName: "C", DepartureTime: now.Add(10 * time.Minute), Status: model.StatusDelayed, DelayMinutes: 15},
		{TrainNumber: "3", TrainName: "Gone", DestinationName: "C", DepartureTime: now.Add(20 * time.Minute), Status: model.StatusCancelled},
	}

	table := BuildBoardTableVM(station, departures, now)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "departing", table.Rows[0].Leaves)
	assert.Equal(t, "09:10", table.Rows[1].Scheduled)
	assert.Equal(t, "09:25", table.Rows[1].Expected)
	assert.Equal(t, "delayed 15m", table.Rows[1].Status)
	assert.Equal(t, "in 25m", table.Rows[1].Leaves)
	assert.Equal(t, "-", table.Rows[2].Expected)
	assert.Equal(t, "cancelled", table.Rows[2].Status)
	assert.Equal(t, "09:00:00", table.UpdatedAt)

	page := BuildBoardPageVM(station, table, 0)
	assert.Equal(t, boardPollSeconds, page.PollSeconds)
}

func TestCheckoutFlow(t *testing.T) {
	h := newHarness(t)
	fixture := h.seed()
	customer, user := h.register("rider@example.com")
	other, _ := h.register("other@example.com")

	input := fixture.checkout(seatInput{CoachID: fixture.seat.ID, SeatNumber: 2}, seatInput{CoachType: model.CoachBed})
	var booking model.Booking
	h.decodeInto(h.do("POST", "/api/checkout", customer, input, idempotencyHeader, "attempt-1"), http.StatusCreated, &booking)
	assert.Len(t, booking.Reference, 10)
	assert.Equal(t, "52.5", booking.TotalAmount.String())
	require.Len(t, booking.Tickets, 2)
	assert.Equal(t, 2, booking.Tickets[0].SeatNumber)
	require.NotNil(t, booking.UserID)
	assert.Equal(t, user.ID, *booking.UserID)

	var replayed model.Booking
	h.decodeInto(h.do("POST", "/api/checkout", customer, input, idempotencyHeader, "attempt-1"), http.StatusOK, &replayed)
	assert.Equal(t, booking.ID, replayed.ID)

	changed := fixture.checkout(seatInput{CoachID: fixture.seat.ID, SeatNumber: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, h.do("POST", "/api/checkout", customer, changed, idempotencyHeader, "attempt-1").Code)

	soldOut := fixture.checkout(seatInput{CoachType: model.CoachBed})
	assert.Equal(t, http.StatusConflict, h.do("POST", "/api/checkout", other, soldOut).Code)
	taken := fixture.checkout(seatInput{CoachID: fixture.seat.ID, SeatNumber: 2})
	assert.Equal(t, http.StatusConflict, h.do("POST", "/api/checkout", other, taken).Code)

	var bookings []model.Booking
	h.decodeInto(h.do("GET", "/api/bookings", customer, nil), http.StatusOK, &bookings)
	assert.Len(t, bookings, 1)
	h.decodeInto(h.do("GET", "/api/bookings", other, nil), http.StatusOK, &bookings)
	assert.Empty(t, bookings)

	bookingPath := fmt.Sprintf("/api/bookings/%d", booking.ID)
	assert.Equal(t, http.StatusNotFound, h.do("GET", bookingPath, other, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/bookings/by-reference/"+booking.Reference, other, nil).Code)
	assert.Equal(t, http.StatusOK, h.do("GET", "/api/bookings/by-reference/"+strings.ToLower(booking.Reference), customer, nil).Code)

	var passengers []model.Passenger
	h.decodeInto(h.do("GET", "/api/passengers", customer, nil), http.StatusOK, &passengers)
	require.Len(t, passengers, 1)
	h.decodeInto(h.do("GET", "/api/passengers", other, nil), http.StatusOK, &passengers)
	assert.Empty(t, passengers)

	receipt := h.do("GET", bookingPath+"/receipt", customer, nil)
	require.Equal(t, http.StatusOK, receipt.Code)
	assert.Contains(t, receipt.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, receipt.Body.String(), booking.Reference)
	assert.Contains(t, receipt.Body.String(), "Grace Hopper")
	assert.Contains(t, receipt.Body.String(), "2h 00m")

	assert.Equal(t, http.StatusNotFound, h.do("POST", bookingPath+"/cancel", other, nil).Code)
	var cancelled model.Booking
	h.decodeInto(h.do("POST", bookingPath+"/cancel", customer, nil), http.StatusOK, &cancelled)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)

	h.decodeInto(h.do("POST", "/api/checkout", other, soldOut), http.StatusCreated, &booking)
	assert.Equal(t, http.StatusForbidden, h.do("DELETE", bookingPath, customer, nil).Code)
}

func TestCheckoutRejectsForeignPassenger(t *testing.T) {
	h := newHarness(t)
	fixture := h.seed()
	customer, _ := h.register("rider@example.com")
	other, _ := h.register("other@example.com")

	var passenger model.Passenger
	h.decodeInto(h.do("POST", "/api/passengers", customer, passengerInput{Name: "Mine"}), http.StatusCreated, &passenger)

	input := fixture.checkout(seatInput{CoachType: model.CoachSeat})
	input.Passenger = nil
	input.PassengerID = passenger.ID
	assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/checkout", other, input).Code)
	assert.Equal(t, http.StatusCreated, h.do("POST", "/api/checkout", customer, input).Code)

	assert.Equal(t, http.StatusNotFound, h.do("PUT", fmt.Sprintf("/api/passengers/%d", passenger.ID), other, passengerInput{Name: "Stolen"}).Code)
}

func TestCheckoutRequestLimits(t *testing.T) {
	h := newHarness(t)
	fixture := h.seed()
	customer, _ := h.register("rider@example.com")

	seats := make([]seatInput, 11)
	for i := range seats {
		seats[i] = seatInput{CoachType: model.CoachSeat}
	}
	assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/checkout", customer, fixture.checkout(seats...)).Code)
	assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/checkout", customer, fixture.checkout()).Code)

	long := strings.Repeat("k", maxIdempotencyKeyLen+1)
	input := fixture.checkout(seatInput{CoachType: model.CoachSeat})
	assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/checkout", customer, input, idempotencyHeader, long).Code)
}

func TestAdminManagesTicketsAndUsers(t *testing.T) {
	h := newHarness(t)
	fixture := h.seed()
	customer, user := h.register("rider@example.com")

	var booking model.Booking
	h.decodeInto(h.do("POST", "/api/checkout", customer, fixture.checkout(seatInput{CoachID: fixture.seat.ID, SeatNumber: 1})), http.StatusCreated, &booking)

	var ticket model.Ticket
	h.decodeInto(h.do("POST", "/api/tickets", h.adminToken, ticketInput{
		BookingID:          booking.ID,
		CoachID:            fixture.seat.ID,
		DepartureStationID: fixture.stations[0].ID,
		ArrivalStationID:   fixture.stations[1].ID,
	}), http.StatusCreated, &ticket)
	assert.Equal(t, 2, ticket.SeatNumber)

	var tickets []model.Ticket
	h.decodeInto(h.do("GET", "/api/tickets", customer, nil), http.StatusOK, &tickets)
	assert.Len(t, tickets, 2)

	h.decodeInto(h.do("PUT", fmt.Sprintf("/api/tickets/%d", ticket.ID), h.adminToken, map[string]string{"status": "cancelled"}), http.StatusOK, &ticket)
	assert.Equal(t, model.TicketCancelled, ticket.Status)

	var updated model.User
	h.decodeInto(h.do("PUT", fmt.Sprintf("/api/users/%d", user.ID), h.adminToken, userInput{
		Email: user.Email, Name: "Renamed", Role: model.RoleCustomer,
	}), http.StatusOK, &updated)
	assert.Equal(t, "Renamed", updated.Name)
	assert.NotEmpty(t, h.login(user.Email, "customer-password"))

	var dashboard model.Dashboard
	h.decodeInto(h.do("GET", "/api/dashboard", h.adminToken, nil), http.StatusOK, &dashboard)
	assert.Equal(t, int64(1), dashboard.ConfirmedBookings)
	assert.Equal(t, int64(2), dashboard.Users)
}

func TestCheckoutFailureReason(t *testing.T) {
	assert.Equal(t, "seat_taken", checkoutFailureReason(store.ErrSeatTaken))
	assert.Equal(t, "sold_out", checkoutFailureReason(fmt.Errorf("wrapped: %w", store.ErrSoldOut)))
	assert.Equal(t, "invalid", checkoutFailureReason(badRequest("nope")))
	assert.Equal(t, "error", checkoutFailureReason(io.ErrUnexpectedEOF))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45m", formatDuration(45*time.Minute))
	assert.Equal(t, "2h 05m", formatDuration(2*time.Hour+5*time.Minute))
	assert.Equal(t, "0m", formatDuration(-time.Minute))
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	server := &Server{logger: slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/stations", nil)
	server.writeJSON(recorder, request, http.StatusOK, map[string]any{"broken": make(chan int)})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, logs.String(), "response encode failed")
	assert.Contains(t, logs.String(), "path=/api/stations")
	assert.Contains(t, logs.String(), "request_id=")
}
