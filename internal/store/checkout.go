package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
)

const MaxSeatsPerCheckout = 10

// SeatRequest asks for one seat. A zero SeatNumber lets the store pick the
// lowest free seat, in CoachID when set or else in any coach of CoachType.
type SeatRequest struct {
	CoachID    int64           `json:"coach_id,omitempty"`
	CoachType  model.CoachType `json:"coach_type,omitempty"`
	SeatNumber int             `json:"seat_number,omitempty"`
}

type CheckoutRequest struct {
	ScheduleID    int64
	FromStationID int64
	ToStationID   int64
	// Exactly one of PassengerID and Passenger is set. Passenger is created
	// inside the checkout transaction.
	PassengerID int64
	Passenger   *model.Passenger
	Seats       []SeatRequest
	UserID      *int64
	// OwnPassengersOnly rejects an existing passenger that belongs to a
	// different user than UserID.
	OwnPassengersOnly bool
}

// IdempotencyKey identifies a client retry. Scope separates key namespaces,
// usually one per user, and Fingerprint summarizes the request body.
type IdempotencyKey struct {
	Scope       string
	Key         string
	Fingerprint string
}

type CheckoutResult struct {
	Booking  model.Booking
	Replayed bool
}

func validateCheckout(request CheckoutRequest) error {
	if request.ScheduleID == 0 {
		return invalid("checkout without schedule")
	}
	if request.FromStationID == 0 || request.ToStationID == 0 {
		return invalid("checkout needs departure and arrival stations")
	}
	if (request.PassengerID == 0) == (request.Passenger == nil) {
		return invalid("checkout needs exactly one of passenger_id and passenger")
	}
	if request.Passenger != nil && strings.TrimSpace(request.Passenger.Name) == "" {
		return invalid("passenger without name")
	}
	if len(request.Seats) == 0 {
		return invalid("checkout without seats")
	}
	if len(request.Seats) > MaxSeatsPerCheckout {
		return invalid("at most %d seats per checkout", MaxSeatsPerCheckout)
	}

	type seatKey struct {
		coachID int64
		seat    int
	}
	seen := map[seatKey]bool{}
	for _, seat := range request.Seats {
		if seat.SeatNumber < 0 {
			return invalid("seat number %d", seat.SeatNumber)
		}
		if seat.SeatNumber > 0 && seat.CoachID == 0 {
			return invalid("seat %d without coach", seat.SeatNumber)
		}
		if seat.CoachType != "" && seat.CoachType != model.CoachSeat && seat.CoachType != model.CoachBed {
			return invalid("coach type %q", seat.CoachType)
		}
		if seat.SeatNumber == 0 {
			continue
		}
		key := seatKey{seat.CoachID, seat.SeatNumber}
		if seen[key] {
			return invalid("seat %d of coach %d requested twice", seat.SeatNumber, seat.CoachID)
		}
		seen[key] = true
	}
	return nil
}

// Checkout sells the requested seats in one transaction: the passenger (when
// new), the booking and every ticket are stored together or not at all.
//
// With an idempotency key, a retry carrying the same fingerprint returns the
// booking of the first attempt with Replayed set, and a retry carrying a
// different fingerprint fails with ErrIdempotencyMismatch.
func (store *Store) Checkout(ctx context.Context, request CheckoutRequest, key *IdempotencyKey) (CheckoutResult, error) {
	if err := validateCheckout(request); err != nil {
		return CheckoutResult{}, err
	}

	var result CheckoutResult
	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		// Concurrent checkouts on one schedule queue up on this lock, which
		// also covers the idempotency lookup below.
		schedule, err := getSchedule(ctx, tx, request.ScheduleID, store.db.Dialect().LockClause())
		if err != nil {
			return err
		}

		if key != nil {
			booking, found, err := replay(ctx, tx, *key)
			if err != nil {
				return err
			}
			if found {
				result = CheckoutResult{Booking: booking, Replayed: true}
				return nil
			}
		}

		if !schedule.Status.Bookable() {
			return fmt.Errorf("schedule %d is %s: %w", schedule.ID, schedule.Status, ErrNotBookable)
		}
		allocator, err := segmentAllocator(ctx, tx, schedule, request.FromStationID, request.ToStationID)
		if err != nil {
			return err
		}
		tickets, err := allocateSeats(allocator, request)
		if err != nil {
			return err
		}

		now := store.timestamp()
		passenger, err := checkoutPassenger(ctx, tx, request, now)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, ticket := range tickets {
			total = total.Add(ticket.Price)
		}
		booking, err := insertBooking(ctx, tx, model.Booking{
			PassengerID: passenger.ID,
			UserID:      request.UserID,
			ScheduleID:  schedule.ID,
			Status:      model.BookingConfirmed,
			TotalAmount: total,
			BookedAt:    now,
		})
		if err != nil {
			return err
		}

		for i := range tickets {
			tickets[i].BookingID = booking.ID
			tickets[i], err = insertTicket(ctx, tx, tickets[i])
			if err != nil {
				return err
			}
		}
		booking.Tickets = tickets

		if key != nil {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO idempotency_keys (scope, key, fingerprint, booking_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
				key.Scope, key.Key, key.Fingerprint, booking.ID, now,
			)
			if database.IsUniqueViolation(err) {
				// Same-fingerprint retries serialize on the schedule lock, so
				// a racing insert came from a request for another schedule.
				return ErrIdempotencyMismatch
			}
			if err != nil {
				return classify(err, "record idempotency key")
			}
		}

		result = CheckoutResult{Booking: booking}
		return nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}
	return result, nil
}

func replay(ctx context.Context, conn database.DBTX, key IdempotencyKey) (model.Booking, bool, error) {
	var fingerprint string
	var bookingID int64
	err := conn.QueryRowContext(ctx,
		`SELECT fingerprint, booking_id FROM idempotency_keys WHERE scope = $1 AND key = $2`,
		key.Scope, key.Key,
	).Scan(&fingerprint, &bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, classify(err, "look up idempotency key")
	}
	if fingerprint != key.Fingerprint {
		return model.Booking{}, false, ErrIdempotencyMismatch
	}
	booking, err := getBooking(ctx, conn, "id = $1", bookingID, "")
	if err != nil {
		return model.Booking{}, false, err
	}
	return booking, true, nil
}

// allocateSeats claims explicitly numbered seats before auto-assigning the
// rest, so an automatic pick never steals a seat named later in the request.
func allocateSeats(allocator *seatAllocator, request CheckoutRequest) ([]model.Ticket, error) {
	tickets := make([]model.Ticket, len(request.Seats))
	fill := func(i int, coach model.Coach, seat int) {
		tickets[i] = model.Ticket{
			ScheduleID:         request.ScheduleID,
			CoachID:            coach.ID,
			SeatNumber:         seat,
			DepartureStationID: request.FromStationID,
			ArrivalStationID:   request.ToStationID,
			Price:              coach.Price,
			Status:             model.TicketActive,
		}
	}

	for i, seat := range request.Seats {
		if seat.SeatNumber == 0 {
			continue
		}
		coach, err := allocator.claim(seat.CoachID, seat.SeatNumber)
		if err != nil {
			return nil, err
		}
		if seat.CoachType != "" && coach.Type != seat.CoachType {
			return nil, invalid("coach %s is not of type %s", coach.Label, seat.CoachType)
		}
		fill(i, coach, seat.SeatNumber)
	}
	for i, seat := range request.Seats {
		if seat.SeatNumber != 0 {
			continue
		}
		coach, number, err := allocator.assign(seat.CoachID, seat.CoachType)
		if err != nil {
			return nil, err
		}
		fill(i, coach, number)
	}
	return tickets, nil
}

func checkoutPassenger(ctx context.Context, conn database.DBTX, request CheckoutRequest, now time.Time) (model.Passenger, error) {
	if request.Passenger == nil {
		passenger, err := getPassenger(ctx, conn, request.PassengerID)
		if errors.Is(err, ErrNotFound) {
			return model.Passenger{}, invalid("passenger %d does not exist", request.PassengerID)
		}
		if err != nil {
			return model.Passenger{}, err
		}
		if request.OwnPassengersOnly && !sameUser(passenger.UserID, request.UserID) {
			return model.Passenger{}, invalid("passenger %d belongs to another user", passenger.ID)
		}
		return passenger, nil
	}

	passenger := *request.Passenger
	passenger.ID = 0
	passenger.UserID = request.UserID
	passenger.CreatedAt = now
	return insertPassenger(ctx, conn, passenger)
}

func sameUser(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
