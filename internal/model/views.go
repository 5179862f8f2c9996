package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrainSearchResult is one schedule that serves the requested station pair.
type TrainSearchResult struct {
	ScheduleID     int64               `json:"schedule_id"`
	Train          Train               `json:"train"`
	Status         ScheduleStatus      `json:"status"`
	DelayMinutes   int                 `json:"delay_minutes"`
	FromStationID  int64               `json:"from_station_id"`
	ToStationID    int64               `json:"to_station_id"`
	DepartureTime  time.Time           `json:"departure_time"`
	ArrivalTime    time.Time           `json:"arrival_time"`
	Stops          int                 `json:"stops"`
	Coaches        []CoachAvailability `json:"coaches"`
	TotalSeats     int                 `json:"total_seats"`
	AvailableSeats int                 `json:"available_seats"`
	LowestPrice    *decimal.Decimal    `json:"lowest_price,omitempty"`
}

type CoachAvailability struct {
	Type      CoachType       `json:"type"`
	Coaches   int             `json:"coaches"`
	Capacity  int             `json:"capacity"`
	Booked    int             `json:"booked"`
	Available int             `json:"available"`
	MinPrice  decimal.Decimal `json:"min_price"`
}

type SeatMap struct {
	ScheduleID    int64        `json:"schedule_id"`
	FromStationID int64        `json:"from_station_id"`
	ToStationID   int64        `json:"to_station_id"`
	Coaches       []CoachSeats `json:"coaches"`
}

type CoachSeats struct {
	Coach Coach `json:"coach"`
	Taken []int `json:"taken"`
	Free  []int `json:"free"`
}

type Dashboard struct {
	GeneratedAt       time.Time        `json:"generated_at"`
	Stations          int64            `json:"stations"`
	Trains            int64            `json:"trains"`
	Coaches           int64            `json:"coaches"`
	Schedules         int64            `json:"schedules"`
	Passengers        int64            `json:"passengers"`
	Users             int64            `json:"users"`
	ConfirmedBookings int64            `json:"confirmed_bookings"`
	ActiveTickets     int64            `json:"active_tickets"`
	Revenue           decimal.Decimal  `json:"revenue"`
	DepartingToday    int64            `json:"departing_today"`
	ScheduleStatuses  map[string]int64 `json:"schedule_statuses"`
	BookingsByDay     []DailyBookings  `json:"bookings_by_day"`
	TopRoutes         []RouteSales     `json:"top_routes"`
	RecentBookings    []BookingSummary `json:"recent_bookings"`
}

type DailyBookings struct {
	Date     string          `json:"date"`
	Bookings int             `json:"bookings"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type RouteSales struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Tickets int64  `json:"tickets"`
}

type BookingSummary struct {
	ID            int64           `json:"id"`
	Reference     string          `json:"reference"`
	PassengerName string          `json:"passenger_name"`
	TrainNumber   string          `json:"train_number"`
	Status        BookingStatus   `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	BookedAt      time.Time       `json:"booked_at"`
}

// Departure is one train leaving a station, for departure boards.
type Departure struct {
	ScheduleID      int64          `json:"schedule_id"`
	TrainNumber     string         `json:"train_number"`
	TrainName       string         `json:"train_name"`
	DestinationCode string         `json:"destination_code"`
	DestinationName string         `json:"destination_name"`
	DepartureTime   time.Time      `json:"departure_time"`
	Status          ScheduleStatus `json:"status"`
	DelayMinutes    int            `json:"delay_minutes"`
}

// Expected is the departure time adjusted for the reported delay.
func (departure Departure) Expected() time.Time {
	return departure.DepartureTime.Add(time.Duration(departure.DelayMinutes) * time.Minute)
}
