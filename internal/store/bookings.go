package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
)

type BookingFilter struct {
	UserID      *int64
	PassengerID int64
	ScheduleID  int64
	Status      model.BookingStatus
}

const bookingColumns = `id, reference, passenger_id, user_id, schedule_id, status, total_amount, booked_at`

const referenceLength = 10

func scanBooking(row rowScanner) (model.Booking, error) {
	var booking model.Booking
	var userID sql.NullInt64
	err := row.Scan(
		&booking.ID,
		&booking.Reference,
		&booking.PassengerID,
		&userID,
		&booking.ScheduleID,
		&booking.Status,
		&booking.TotalAmount,
		&booking.BookedAt,
	)
	booking.UserID = int64Ptr(userID)
	booking.BookedAt = booking.BookedAt.UTC()
	return booking, err
}

func validBookingStatus(status model.BookingStatus) bool {
	return status == model.BookingConfirmed || status == model.BookingCancelled
}

// newReference derives a short uppercase reference from a random UUID and
// retries until it finds one that is not in use.
func newReference(ctx context.Context, conn database.DBTX) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id, err := uuid.NewV4()
		if err != nil {
			return "", fmt.Errorf("generate reference: %w", err)
		}
		reference := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:referenceLength])

		var exists int
		err = conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE reference = $1`, reference).Scan(&exists)
		if err != nil {
			return "", classify(err, "generate reference")
		}
		if exists == 0 {
			return reference, nil
		}
	}
	return "", fmt.Errorf("generate reference: %w", ErrConflict)
}

func insertBooking(ctx context.Context, conn database.DBTX, booking model.Booking) (model.Booking, error) {
	if booking.Reference == "" {
		reference, err := newReference(ctx, conn)
		if err != nil {
			return model.Booking{}, err
		}
		booking.Reference = reference
	}
	booking.TotalAmount = booking.TotalAmount.Round(2)

	err := conn.QueryRowContext(ctx,
		`INSERT INTO bookings (reference, passenger_id, user_id, schedule_id, status, total_amount, booked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		booking.Reference, booking.PassengerID, nullableInt64(booking.UserID), booking.ScheduleID,
		booking.Status, booking.TotalAmount, booking.BookedAt,
	).Scan(&booking.ID)
	if err != nil {
		return model.Booking{}, classify(err, "create booking")
	}
	return booking, nil
}

// CreateBooking stores a bare booking without tickets. Seats are sold
// through Checkout or CreateTicket.
func (store *Store) CreateBooking(ctx context.Context, booking model.Booking) (model.Booking, error) {
	if booking.Status == "" {
		booking.Status = model.BookingConfirmed
	}
	if !validBookingStatus(booking.Status) {
		return model.Booking{}, invalid("booking status %q", booking.Status)
	}
	if booking.TotalAmount.IsNegative() {
		return model.Booking{}, invalid("booking total %s", booking.TotalAmount)
	}
	booking.BookedAt = store.timestamp()
	booking.Tickets = nil
	return insertBooking(ctx, store.db, booking)
}

func getBooking(ctx context.Context, conn database.DBTX, where string, arg any, lock string) (model.Booking, error) {
	row := conn.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE `+where+lock, arg)
	booking, err := scanBooking(row)
	if err != nil {
		return model.Booking{}, classify(err, "get booking")
	}
	tickets, err := listTickets(ctx, conn, TicketFilter{BookingID: booking.ID}, Page{Limit: MaxPageSize})
	if err != nil {
		return model.Booking{}, err
	}
	booking.Tickets = tickets
	return booking, nil
}

// GetBooking returns a booking with its tickets.
func (store *Store) GetBooking(ctx context.Context, id int64) (model.Booking, error) {
	return getBooking(ctx, store.db, "id = $1", id, "")
}

func (store *Store) GetBookingByReference(ctx context.Context, reference string) (model.Booking, error) {
	return getBooking(ctx, store.db, "reference = $1", strings.ToUpper(strings.TrimSpace(reference)), "")
}

func (store *Store) ListBookings(ctx context.Context, filter BookingFilter, page Page) ([]model.Booking, error) {
	var where whereClause
	if filter.UserID != nil {
		where.add("user_id = ?", *filter.UserID)
	}
	if filter.PassengerID != 0 {
		where.add("passenger_id = ?", filter.PassengerID)
	}
	if filter.ScheduleID != 0 {
		where.add("schedule_id = ?", filter.ScheduleID)
	}
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings` + where.sql() + ` ORDER BY booked_at DESC, id DESC` + where.paginate(page)

	rows, err := store.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list bookings")
	}
	defer rows.Close()

	bookings := []model.Booking{}
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, classify(err, "list bookings")
		}
		bookings = append(bookings, booking)
	}
	return bookings, classify(rows.Err(), "list bookings")
}

// UpdateBooking changes the passenger and status of a booking. A cancelled
// booking cannot be confirmed again since its seats may have been resold.
func (store *Store) UpdateBooking(ctx context.Context, booking model.Booking) (model.Booking, error) {
	if !validBookingStatus(booking.Status) {
		return model.Booking{}, invalid("booking status %q", booking.Status)
	}
	if booking.Status == model.BookingCancelled {
		return store.CancelBooking(ctx, booking.ID)
	}

	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getBooking(ctx, tx, "id = $1", booking.ID, store.db.Dialect().LockClause())
		if err != nil {
			return err
		}
		if current.Status == model.BookingCancelled {
			return fmt.Errorf("booking %s is cancelled: %w", current.Reference, ErrConflict)
		}
		return execAffecting(ctx, tx, "update booking",
			`UPDATE bookings SET passenger_id = $1 WHERE id = $2`,
			booking.PassengerID, booking.ID,
		)
	})
	if err != nil {
		return model.Booking{}, err
	}
	return store.GetBooking(ctx, booking.ID)
}

// CancelBooking cancels a booking and all of its tickets, which frees their
// seats. The total amount is kept as the record of what was paid.
// Cancelling twice is a no-op.
func (store *Store) CancelBooking(ctx context.Context, id int64) (model.Booking, error) {
	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		booking, err := getBooking(ctx, tx, "id = $1", id, store.db.Dialect().LockClause())
		if err != nil {
			return err
		}
		if booking.Status == model.BookingCancelled {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = $1 WHERE id = $2`, model.BookingCancelled, id,
		); err != nil {
			return classify(err, "cancel booking")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tickets SET status = $1 WHERE booking_id = $2`, model.TicketCancelled, id,
		); err != nil {
			return classify(err, "cancel tickets")
		}
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	return store.GetBooking(ctx, id)
}

func (store *Store) DeleteBooking(ctx context.Context, id int64) error {
	return execAffecting(ctx, store.db, "delete booking", `DELETE FROM bookings WHERE id = $1`, id)
}

// recomputeTotal sets a booking's total to the sum of its active tickets.
func recomputeTotal(ctx context.Context, conn database.DBTX, bookingID int64) (decimal.Decimal, error) {
	tickets, err := listTickets(ctx, conn, TicketFilter{BookingID: bookingID}, Page{Limit: MaxPageSize})
	if err != nil {
		return decimal.Zero, err
	}
	total := sumPrices(tickets).Round(2)
	if _, err := conn.ExecContext(ctx, `UPDATE bookings SET total_amount = $1 WHERE id = $2`, total, bookingID); err != nil {
		return decimal.Zero, classify(err, "update booking total")
	}
	return total, nil
}
