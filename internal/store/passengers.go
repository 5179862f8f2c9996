package store

import (
	"context"
	"database/sql"
	"strings"

	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
)

type PassengerFilter struct {
	UserID *int64
	Query  string
}

const passengerColumns = `id, user_id, name, email, phone, age, gender, created_at`

func scanPassenger(row rowScanner) (model.Passenger, error) {
	var passenger model.Passenger
	var userID, age sql.NullInt64
	err := row.Scan(
		&passenger.ID,
		&userID,
		&passenger.Name,
		&passenger.Email,
		&passenger.Phone,
		&age,
		&passenger.Gender,
		&passenger.CreatedAt,
	)
	passenger.UserID = int64Ptr(userID)
	if age.Valid {
		v := int(age.Int64)
		passenger.Age = &v
	}
	passenger.CreatedAt = passenger.CreatedAt.UTC()
	return passenger, err
}

func nullableAge(age *int) sql.NullInt64 {
	if age == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*age), Valid: true}
}

func insertPassenger(ctx context.Context, conn database.DBTX, passenger model.Passenger) (model.Passenger, error) {
	passenger.Email = strings.ToLower(strings.TrimSpace(passenger.Email))
	err := conn.QueryRowContext(ctx,
		`INSERT INTO passengers (user_id, name, email, phone, age, gender, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		nullableInt64(passenger.UserID), passenger.Name, passenger.Email,
		passenger.Phone, nullableAge(passenger.Age), passenger.Gender, passenger.CreatedAt,
	).Scan(&passenger.ID)
	if err != nil {
		return model.Passenger{}, classify(err, "create passenger")
	}
	return passenger, nil
}

func (store *Store) CreatePassenger(ctx context.Context, passenger model.Passenger) (model.Passenger, error) {
	passenger.CreatedAt = store.timestamp()
	return insertPassenger(ctx, store.db, passenger)
}

func getPassenger(ctx context.Context, conn database.DBTX, id int64) (model.Passenger, error) {
	row := conn.QueryRowContext(ctx, `SELECT `+passengerColumns+` FROM passengers WHERE id = $1`, id)
	passenger, err := scanPassenger(row)
	if err != nil {
		return model.Passenger{}, classify(err, "get passenger")
	}
	return passenger, nil
}

func (store *Store) GetPassenger(ctx context.Context, id int64) (model.Passenger, error) {
	return getPassenger(ctx, store.db, id)
}

func (store *Store) ListPassengers(ctx context.Context, filter PassengerFilter, page Page) ([]model.Passenger, error) {
	var where whereClause
	if filter.UserID != nil {
		where.add("user_id = ?", *filter.UserID)
	}
	if strings.TrimSpace(filter.Query) != "" {
		pattern := likePattern(filter.Query)
		where.add("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", pattern, pattern)
	}
	query := `SELECT ` + passengerColumns + ` FROM passengers` + where.sql() + ` ORDER BY name, id` + where.paginate(page)

	rows, err := store.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list passengers")
	}
	defer rows.Close()

	passengers := []model.Passenger{}
	for rows.Next() {
		passenger, err := scanPassenger(rows)
		if err != nil {
			return nil, classify(err, "list passengers")
		}
		passengers = append(passengers, passenger)
	}
	return passengers, classify(rows.Err(), "list passengers")
}

func (store *Store) UpdatePassenger(ctx context.Context, passenger model.Passenger) (model.Passenger, error) {
	err := execAffecting(ctx, store.db, "update passenger",
		`UPDATE passengers SET name = $1, email = $2, phone = $3, age = $4, gender = $5 WHERE id = $6`,
		passenger.Name, strings.ToLower(strings.TrimSpace(passenger.Email)), passenger.Phone,
		nullableAge(passenger.Age), passenger.Gender, passenger.ID,
	)
	if err != nil {
		return model.Passenger{}, err
	}
	return store.GetPassenger(ctx, passenger.ID)
}

func (store *Store) DeletePassenger(ctx context.Context, id int64) error {
	return execAffecting(ctx, store.db, "delete passenger", `DELETE FROM passengers WHERE id = $1`, id)
}
