package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
)

type CoachFilter struct {
	TrainID int64
	Type    model.CoachType
}

const coachColumns = `id, train_id, label, type, capacity, price`

func scanCoach(row rowScanner) (model.Coach, error) {
	var coach model.Coach
	err := row.Scan(&coach.ID, &coach.TrainID, &coach.Label, &coach.Type, &coach.Capacity, &coach.Price)
	return coach, err
}

func validateCoach(coach model.Coach) error {
	if coach.Type != model.CoachSeat && coach.Type != model.CoachBed {
		return invalid("coach type %q", coach.Type)
	}
	if coach.Capacity <= 0 {
		return invalid("coach capacity %d", coach.Capacity)
	}
	if coach.Price.IsNegative() {
		return invalid("coach price %s", coach.Price)
	}
	return nil
}

func (store *Store) CreateCoach(ctx context.Context, coach model.Coach) (model.Coach, error) {
	if err := validateCoach(coach); err != nil {
		return model.Coach{}, err
	}
	coach.Price = coach.Price.Round(2)

	err := store.db.QueryRowContext(ctx,
		`INSERT INTO coaches (train_id, label, type, capacity, price) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		coach.TrainID, coach.Label, coach.Type, coach.Capacity, coach.Price,
	).Scan(&coach.ID)
	if err != nil {
		return model.Coach{}, classify(err, "create coach")
	}
	return coach, nil
}

func getCoach(ctx context.Context, conn database.DBTX, id int64) (model.Coach, error) {
	row := conn.QueryRowContext(ctx, `SELECT `+coachColumns+` FROM coaches WHERE id = $1`, id)
	coach, err := scanCoach(row)
	if err != nil {
		return model.Coach{}, classify(err, "get coach")
	}
	return coach, nil
}

func (store *Store) GetCoach(ctx context.Context, id int64) (model.Coach, error) {
	return getCoach(ctx, store.db, id)
}

func listCoaches(ctx context.Context, conn database.DBTX, filter CoachFilter, page Page) ([]model.Coach, error) {
	var where whereClause
	if filter.TrainID != 0 {
		where.add("train_id = ?", filter.TrainID)
	}
	if filter.Type != "" {
		where.add("type = ?", filter.Type)
	}
	query := `SELECT ` + coachColumns + ` FROM coaches` + where.sql() + ` ORDER BY train_id, label, id` + where.paginate(page)

	rows, err := conn.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list coaches")
	}
	defer rows.Close()

	coaches := []model.Coach{}
	for rows.Next() {
		coach, err := scanCoach(rows)
		if err != nil {
			return nil, classify(err, "list coaches")
		}
		coaches = append(coaches, coach)
	}
	return coaches, classify(rows.Err(), "list coaches")
}

func (store *Store) ListCoaches(ctx context.Context, filter CoachFilter, page Page) ([]model.Coach, error) {
	return listCoaches(ctx, store.db, filter, page)
}

// UpdateCoach refuses to shrink a coach below a seat that is still sold, or
// to move a coach with active tickets to another train.
func (store *Store) UpdateCoach(ctx context.Context, coach model.Coach) (model.Coach, error) {
	if err := validateCoach(coach); err != nil {
		return model.Coach{}, err
	}
	coach.Price = coach.Price.Round(2)

	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getCoach(ctx, tx, coach.ID)
		if err != nil {
			return err
		}
		if current.TrainID != coach.TrainID {
			sold, err := activeTickets(ctx, tx, "coach_id", coach.ID)
			if err != nil {
				return err
			}
			if sold > 0 {
				return fmt.Errorf("update coach: %d active tickets keep it on train %d: %w", sold, current.TrainID, ErrConflict)
			}
		}

		var highestSeat sql.NullInt64
		err = tx.QueryRowContext(ctx,
			`SELECT MAX(seat_number) FROM tickets WHERE coach_id = $1 AND status = $2`,
			coach.ID, model.TicketActive,
		).Scan(&highestSeat)
		if err != nil {
			return classify(err, "update coach")
		}
		if highestSeat.Valid && int(highestSeat.Int64) > coach.Capacity {
			return fmt.Errorf("update coach: seat %d is sold: %w", highestSeat.Int64, ErrConflict)
		}

		return execAffecting(ctx, tx, "update coach",
			`UPDATE coaches SET train_id = $1, label = $2, type = $3, capacity = $4, price = $5 WHERE id = $6`,
			coach.TrainID, coach.Label, coach.Type, coach.Capacity, coach.Price, coach.ID,
		)
	})
	if err != nil {
		return model.Coach{}, err
	}
	return store.GetCoach(ctx, coach.ID)
}

func (store *Store) DeleteCoach(ctx context.Context, id int64) error {
	return execAffecting(ctx, store.db, "delete coach", `DELETE FROM coaches WHERE id = $1`, id)
}

func sumPrices(tickets []model.Ticket) decimal.Decimal {
	total := decimal.Zero
	for _, ticket := range tickets {
		if ticket.Status == model.TicketActive {
			total = total.Add(ticket.Price)
		}
	}
	return total
}
