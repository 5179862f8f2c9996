package store

import (
	"context"
	"database/sql"
	"fmt"

	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
)

type TicketFilter struct {
	BookingID  int64
	ScheduleID int64
	UserID     *int64
	Status     model.TicketStatus
}

const ticketColumns = `id, booking_id, schedule_id, coach_id, seat_number, departure_station_id, arrival_station_id, price, status`

func scanTicket(row rowScanner) (model.Ticket, error) {
	var ticket model.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.BookingID,
		&ticket.ScheduleID,
		&ticket.CoachID,
		&ticket.SeatNumber,
		&ticket.DepartureStationID,
		&ticket.ArrivalStationID,
		&ticket.Price,
		&ticket.Status,
	)
	return ticket, err
}

func insertTicket(ctx context.Context, conn database.DBTX, ticket model.Ticket) (model.Ticket, error) {
	ticket.Price = ticket.Price.Round(2)
	err := conn.QueryRowContext(ctx,
		`INSERT INTO tickets (booking_id, schedule_id, coach_id, seat_number, departure_station_id, arrival_station_id, price, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		ticket.BookingID, ticket.ScheduleID, ticket.CoachID, ticket.SeatNumber,
		ticket.DepartureStationID, ticket.ArrivalStationID, ticket.Price, ticket.Status,
	).Scan(&ticket.ID)
	if err != nil {
		return model.Ticket{}, classify(err, "create ticket")
	}
	return ticket, nil
}

func getTicket(ctx context.Context, conn database.DBTX, id int64) (model.Ticket, error) {
	row := conn.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
	ticket, err := scanTicket(row)
	if err != nil {
		return model.Ticket{}, classify(err, "get ticket")
	}
	return ticket, nil
}

func (store *Store) GetTicket(ctx context.Context, id int64) (model.Ticket, error) {
	return getTicket(ctx, store.db, id)
}

func listTickets(ctx context.Context, conn database.DBTX, filter TicketFilter, page Page) ([]model.Ticket, error) {
	var where whereClause
	if filter.BookingID != 0 {
		where.add("booking_id = ?", filter.BookingID)
	}
	if filter.ScheduleID != 0 {
		where.add("schedule_id = ?", filter.ScheduleID)
	}
	if filter.UserID != nil {
		where.add("booking_id IN (SELECT id FROM bookings WHERE user_id = ?)", *filter.UserID)
	}
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets` + where.sql() + ` ORDER BY booking_id, coach_id, seat_number, id` + where.paginate(page)

	rows, err := conn.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list tickets")
	}
	defer rows.Close()

	tickets := []model.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, classify(err, "list tickets")
		}
		tickets = append(tickets, ticket)
	}
	return tickets, classify(rows.Err(), "list tickets")
}

func (store *Store) ListTickets(ctx context.Context, filter TicketFilter, page Page) ([]model.Ticket, error) {
	return listTickets(ctx, store.db, filter, page)
}

// CreateTicket adds a seat to an existing confirmed booking. A zero seat
// number picks the lowest free seat of the coach, and a zero price takes the
// coach price. The booking total follows.
func (store *Store) CreateTicket(ctx context.Context, ticket model.Ticket) (model.Ticket, error) {
	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		lock := store.db.Dialect().LockClause()
		booking, err := getBooking(ctx, tx, "id = $1", ticket.BookingID, lock)
		if err != nil {
			return err
		}
		if booking.Status != model.BookingConfirmed {
			return fmt.Errorf("booking %s is %s: %w", booking.Reference, booking.Status, ErrConflict)
		}
		if ticket.ScheduleID != 0 && ticket.ScheduleID != booking.ScheduleID {
			return invalid("ticket schedule %d differs from booking schedule %d", ticket.ScheduleID, booking.ScheduleID)
		}
		ticket.ScheduleID = booking.ScheduleID

		schedule, err := getSchedule(ctx, tx, ticket.ScheduleID, lock)
		if err != nil {
			return err
		}
		if !schedule.Status.Bookable() {
			return fmt.Errorf("schedule %d is %s: %w", schedule.ID, schedule.Status, ErrNotBookable)
		}

		allocator, err := segmentAllocator(ctx, tx, schedule, ticket.DepartureStationID, ticket.ArrivalStationID)
		if err != nil {
			return err
		}
		var coach model.Coach
		if ticket.SeatNumber == 0 {
			coach, ticket.SeatNumber, err = allocator.assign(ticket.CoachID, "")
		} else {
			coach, err = allocator.claim(ticket.CoachID, ticket.SeatNumber)
		}
		if err != nil {
			return err
		}
		if ticket.Price.IsZero() {
			ticket.Price = coach.Price
		}
		ticket.Status = model.TicketActive

		ticket, err = insertTicket(ctx, tx, ticket)
		if err != nil {
			return err
		}
		_, err = recomputeTotal(ctx, tx, booking.ID)
		return err
	})
	if err != nil {
		return model.Ticket{}, err
	}
	return ticket, nil
}

// UpdateTicket changes a ticket's status. Reactivating a cancelled ticket
// requires its seat to still be free for the ticket's segment.
func (store *Store) UpdateTicket(ctx context.Context, ticket model.Ticket) (model.Ticket, error) {
	if ticket.Status != model.TicketActive && ticket.Status != model.TicketCancelled {
		return model.Ticket{}, invalid("ticket status %q", ticket.Status)
	}

	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		lock := store.db.Dialect().LockClause()
		current, err := getTicket(ctx, tx, ticket.ID)
		if err != nil {
			return err
		}
		if current.Status == ticket.Status {
			return nil
		}

		if ticket.Status == model.TicketActive {
			booking, err := getBooking(ctx, tx, "id = $1", current.BookingID, lock)
			if err != nil {
				return err
			}
			if booking.Status != model.BookingConfirmed {
				return fmt.Errorf("booking %s is %s: %w", booking.Reference, booking.Status, ErrConflict)
			}
			schedule, err := getSchedule(ctx, tx, current.ScheduleID, lock)
			if err != nil {
				return err
			}
			allocator, err := segmentAllocator(ctx, tx, schedule, current.DepartureStationID, current.ArrivalStationID)
			if err != nil {
				return err
			}
			if _, err := allocator.claim(current.CoachID, current.SeatNumber); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE tickets SET status = $1 WHERE id = $2`, ticket.Status, ticket.ID); err != nil {
			return classify(err, "update ticket")
		}
		_, err = recomputeTotal(ctx, tx, current.BookingID)
		return err
	})
	if err != nil {
		return model.Ticket{}, err
	}
	return store.GetTicket(ctx, ticket.ID)
}

func (store *Store) DeleteTicket(ctx context.Context, id int64) error {
	return store.db.WithTx(ctx, func(tx *sql.Tx) error {
		ticket, err := getTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := execAffecting(ctx, tx, "delete ticket", `DELETE FROM tickets WHERE id = $1`, id); err != nil {
			return err
		}
		_, err = recomputeTotal(ctx, tx, ticket.BookingID)
		return err
	})
}

// segmentAllocator prepares seat allocation on a schedule between two of its
// stops, with every overlapping active ticket already marked as taken.
func segmentAllocator(ctx context.Context, conn database.DBTX, schedule model.Schedule, fromStationID, toStationID int64) (*seatAllocator, error) {
	fromOrder, toOrder, err := segment(ctx, conn, schedule.ID, fromStationID, toStationID)
	if err != nil {
		return nil, err
	}
	coaches, err := trainCoaches(ctx, conn, schedule.TrainID)
	if err != nil {
		return nil, err
	}
	taken, err := loadTakenSeats(ctx, conn, schedule.ID, fromOrder, toOrder)
	if err != nil {
		return nil, err
	}
	return newSeatAllocator(coaches, taken), nil
}
