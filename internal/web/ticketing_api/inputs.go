package ticketing_api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

func pathID(request *http.Request) (int64, error) {
	raw := chi.URLParam(request, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", raw)
	}
	return id, nil
}

func queryInt64(values url.Values, name string) (int64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return value, nil
}

func ParsePage(values url.Values) (store.Page, error) {
	limit, err := queryInt64(values, "limit")
	if err != nil {
		return store.Page{}, err
	}
	offset, err := queryInt64(values, "offset")
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Limit: int(limit), Offset: int(offset)}, nil
}

// ParseDate accepts YYYY-MM-DD, interpreted as a UTC calendar day.
func ParseDate(raw string) (time.Time, error) {
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, badRequest("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return date, nil
}

type SearchQuery struct {
	From int64
	To   int64
	Date time.Time
}

func ParseSearchQuery(values url.Values, now time.Time) (SearchQuery, error) {
	from, err := queryInt64(values, "from")
	if err != nil {
		return SearchQuery{}, err
	}
	to, err := queryInt64(values, "to")
	if err != nil {
		return SearchQuery{}, err
	}
	if from == 0 || to == 0 {
		return SearchQuery{}, badRequest("from and to are required")
	}

	query := SearchQuery{From: from, To: to, Date: now.UTC()}
	if raw := values.Get("date"); raw != "" {
		if query.Date, err = ParseDate(raw); err != nil {
			return SearchQuery{}, err
		}
	}
	return query, nil
}

const (
	defaultBoardWindow = 3 * time.Hour
	maxBoardWindow     = 24 * time.Hour
	defaultBoardRows   = 20
)

type BoardQuery struct {
	Window time.Duration
	Limit  int
}

// ParseBoardQuery reads ?hours= and ?limit= for departure boards.
func ParseBoardQuery(values url.Values) (BoardQuery, error) {
	query := BoardQuery{Window: defaultBoardWindow, Limit: defaultBoardRows}
	hours, err := queryInt64(values, "hours")
	if err != nil {
		return BoardQuery{}, err
	}
	if hours > 0 {
		query.Window = time.Duration(hours) * time.Hour
	}
	if query.Window > maxBoardWindow {
		query.Window = maxBoardWindow
	}
	limit, err := queryInt64(values, "limit")
	if err != nil {
		return BoardQuery{}, err
	}
	if limit > 0 {
		query.Limit = int(limit)
	}
	return query, nil
}

type stationInput struct {
	Code string `json:"code" validate:"required,max=16"`
	Name string `json:"name" validate:"required,max=120"`
	City string `json:"city" validate:"max=120"`
}

func (input stationInput) station(id int64) model.Station {
	return model.Station{ID: id, Code: input.Code, Name: input.Name, City: input.City}
}

type trainInput struct {
	Number string `json:"number" validate:"required,max=16"`
	Name   string `json:"name" validate:"required,max=120"`
	Type   string `json:"type" validate:"max=40"`
}

func (input trainInput) train(id int64) model.Train {
	return model.Train{ID: id, Number: input.Number, Name: input.Name, Type: input.Type}
}

type coachInput struct {
	TrainID  int64           `json:"train_id" validate:"required,min=1"`
	Label    string          `json:"label" validate:"required,max=16"`
	Type     model.CoachType `json:"type" validate:"required,oneof=seat bed"`
	Capacity int             `json:"capacity" validate:"required,min=1,max=500"`
	Price    decimal.Decimal `json:"price"`
}

func (input coachInput) coach(id int64) model.Coach {
	return model.Coach{ID: id, TrainID: input.TrainID, Label: input.Label, Type: input.Type, Capacity: input.Capacity, Price: input.Price}
}

type stopInput struct {
	StationID     int64      `json:"station_id" validate:"required,min=1"`
	StopOrder     int        `json:"stop_order" validate:"min=0"`
	ArrivalTime   *time.Time `json:"arrival_time"`
	DepartureTime *time.Time `json:"departure_time"`
}

func (input stopInput) journey(id, scheduleID int64) model.Journey {
	return model.Journey{
		ID:            id,
		ScheduleID:    scheduleID,
		StationID:     input.StationID,
		StopOrder:     input.StopOrder,
		ArrivalTime:   input.ArrivalTime,
		DepartureTime: input.DepartureTime,
	}
}

type scheduleInput struct {
	TrainID        int64                `json:"train_id" validate:"required,min=1"`
	StartStationID int64                `json:"start_station_id" validate:"required,min=1"`
	EndStationID   int64                `json:"end_station_id" validate:"required,min=1,nefield=StartStationID"`
	DepartureTime  time.Time            `json:"departure_time" validate:"required"`
	ArrivalTime    time.Time            `json:"arrival_time" validate:"required,gtfield=DepartureTime"`
	Status         model.ScheduleStatus `json:"status" validate:"omitempty,oneof=on-time delayed cancelled completed"`
	DelayMinutes   int                  `json:"delay_minutes" validate:"min=0"`
	ExternalTripID *string              `json:"external_trip_id" validate:"omitempty,max=128"`
	Stops          []stopInput          `json:"stops" validate:"omitempty,dive"`
}

func (input scheduleInput) schedule(id int64) model.Schedule {
	status := input.Status
	if status == "" {
		status = model.StatusOnTime
	}
	return model.Schedule{
		ID:             id,
		TrainID:        input.TrainID,
		StartStationID: input.StartStationID,
		EndStationID:   input.EndStationID,
		DepartureTime:  input.DepartureTime,
		ArrivalTime:    input.ArrivalTime,
		Status:         status,
		DelayMinutes:   input.DelayMinutes,
		ExternalTripID: input.ExternalTripID,
	}
}

func (input scheduleInput) stops() []model.Journey {
	stops := make([]model.Journey, 0, len(input.Stops))
	for _, stop := range input.Stops {
		stops = append(stops, stop.journey(0, 0))
	}
	return stops
}

type journeyInput struct {
	ScheduleID int64 `json:"schedule_id" validate:"required,min=1"`
	stopInput
}

type passengerInput struct {
	UserID *int64 `json:"user_id"`
	Name   string `json:"name" validate:"required,max=120"`
	Email  string `json:"email" validate:"omitempty,email"`
	Phone  string `json:"phone" validate:"omitempty,max=32"`
	Age    *int   `json:"age" validate:"omitempty,min=0,max=130"`
	Gender string `json:"gender" validate:"omitempty,max=16"`
}

func (input passengerInput) passenger(id int64) model.Passenger {
	return model.Passenger{
		ID:     id,
		UserID: input.UserID,
		Name:   strings.TrimSpace(input.Name),
		Email:  input.Email,
		Phone:  input.Phone,
		Age:    input.Age,
		Gender: input.Gender,
	}
}

type bookingInput struct {
	PassengerID int64               `json:"passenger_id" validate:"required,min=1"`
	UserID      *int64              `json:"user_id"`
	ScheduleID  int64               `json:"schedule_id" validate:"required,min=1"`
	Status      model.BookingStatus `json:"status" validate:"omitempty,oneof=confirmed cancelled"`
}

type ticketInput struct {
	BookingID          int64           `json:"booking_id" validate:"required,min=1"`
	CoachID            int64           `json:"coach_id" validate:"required,min=1"`
	SeatNumber         int             `json:"seat_number" validate:"min=0"`
	DepartureStationID int64           `json:"departure_station_id" validate:"required,min=1"`
	ArrivalStationID   int64           `json:"arrival_station_id" validate:"required,min=1,nefield=DepartureStationID"`
	Price              decimal.Decimal `json:"price"`
}

type userInput struct {
	Email    string     `json:"email" validate:"required,email"`
	Name     string     `json:"name" validate:"required,max=120"`
	Role     model.Role `json:"role" validate:"required,oneof=admin customer"`
	Password string     `json:"password" validate:"omitempty,min=8"`
}

type registerInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type seatInput struct {
	CoachID    int64           `json:"coach_id" validate:"omitempty,min=1"`
	CoachType  model.CoachType `json:"coach_type" validate:"omitempty,oneof=seat bed"`
	SeatNumber int             `json:"seat_number" validate:"omitempty,min=1"`
}

type checkoutInput struct {
	ScheduleID    int64           `json:"schedule_id" validate:"required,min=1"`
	FromStationID int64           `json:"from_station_id" validate:"required,min=1"`
	ToStationID   int64           `json:"to_station_id" validate:"required,min=1,nefield=FromStationID"`
	PassengerID   int64           `json:"passenger_id" validate:"omitempty,min=1"`
	Passenger     *passengerInput `json:"passenger"`
	Seats         []seatInput     `json:"seats" validate:"required,min=1,max=10,dive"`
}

func (input checkoutInput) request() store.CheckoutRequest {
	request := store.CheckoutRequest{
		ScheduleID:    input.ScheduleID,
		FromStationID: input.FromStationID,
		ToStationID:   input.ToStationID,
		PassengerID:   input.PassengerID,
		Seats:         make([]store.SeatRequest, 0, len(input.Seats)),
	}
	if input.Passenger != nil {
		passenger := input.Passenger.passenger(0)
		request.Passenger = &passenger
	}
	for _, seat := range input.Seats {
		request.Seats = append(request.Seats, store.SeatRequest{
			CoachID:    seat.CoachID,
			CoachType:  seat.CoachType,
			SeatNumber: seat.SeatNumber,
		})
	}
	return request
}
