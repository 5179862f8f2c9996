package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleCustomer  Role = "customer"
	RoleAnonymous Role = "anonymous"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Passenger struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Age       *int      `json:"age,omitempty"`
	Gender    string    `json:"gender,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking groups the tickets bought in one checkout for a passenger.
type Booking struct {
	ID          int64           `json:"id"`
	Reference   string          `json:"reference"`
	PassengerID int64           `json:"passenger_id"`
	UserID      *int64          `json:"user_id,omitempty"`
	ScheduleID  int64           `json:"schedule_id"`
	Status      BookingStatus   `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	BookedAt    time.Time       `json:"booked_at"`
	Tickets     []Ticket        `json:"tickets,omitempty"`
}

// OwnedBy reports whether the booking was made by the given user.
func (booking *Booking) OwnedBy(userID int64) bool {
	return booking.UserID != nil && *booking.UserID == userID
}

type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketCancelled TicketStatus = "cancelled"
)

// Ticket reserves one seat of one coach between two stops of a schedule.
type Ticket struct {
	ID                 int64           `json:"id"`
	BookingID          int64           `json:"booking_id"`
	ScheduleID         int64           `json:"schedule_id"`
	CoachID            int64           `json:"coach_id"`
	SeatNumber         int             `json:"seat_number"`
	DepartureStationID int64           `json:"departure_station_id"`
	ArrivalStationID   int64           `json:"arrival_station_id"`
	Price              decimal.Decimal `json:"price"`
	Status             TicketStatus    `json:"status"`
}
