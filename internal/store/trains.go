package store

import (
	"context"
	"strings"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

type TrainFilter struct {
	Query string
}

const trainColumns = `id, number, name, type, created_at`

func scanTrain(row rowScanner) (model.Train, error) {
	var train model.Train
	err := row.Scan(&train.ID, &train.Number, &train.Name, &train.Type, &train.CreatedAt)
	train.CreatedAt = train.CreatedAt.UTC()
	return train, err
}

func (store *Store) CreateTrain(ctx context.Context, train model.Train) (model.Train, error) {
	train.Number = strings.TrimSpace(train.Number)
	train.CreatedAt = store.timestamp()

	err := store.db.QueryRowContext(ctx,
		`INSERT INTO trains (number, name, type, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		train.Number, train.Name, train.Type, train.CreatedAt,
	).Scan(&train.ID)
	if err != nil {
		return model.Train{}, classify(err, "create train")
	}
	return train, nil
}

func (store *Store) GetTrain(ctx context.Context, id int64) (model.Train, error) {
	row := store.db.QueryRowContext(ctx, `SELECT `+trainColumns+` FROM trains WHERE id = $1`, id)
	train, err := scanTrain(row)
	if err != nil {
		return model.Train{}, classify(err, "get train")
	}
	return train, nil
}

func (store *Store) GetTrainByNumber(ctx context.Context, number string) (model.Train, error) {
	row := store.db.QueryRowContext(ctx, `SELECT `+trainColumns+` FROM trains WHERE number = $1`, strings.TrimSpace(number))
	train, err := scanTrain(row)
	if err != nil {
		return model.Train{}, classify(err, "get train")
	}
	return train, nil
}

func (store *Store) ListTrains(ctx context.Context, filter TrainFilter, page Page) ([]model.Train, error) {
	var where whereClause
	if strings.TrimSpace(filter.Query) != "" {
		pattern := likePattern(filter.Query)
		where.add("(LOWER(number) LIKE ? OR LOWER(name) LIKE ?)", pattern, pattern)
	}
	query := `SELECT ` + trainColumns + ` FROM trains` + where.sql() + ` ORDER BY number, id` + where.paginate(page)

	rows, err := store.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list trains")
	}
	defer rows.Close()

	trains := []model.Train{}
	for rows.Next() {
		train, err := scanTrain(rows)
		if err != nil {
			return nil, classify(err, "list trains")
		}
		trains = append(trains, train)
	}
	return trains, classify(rows.Err(), "list trains")
}

func (store *Store) UpdateTrain(ctx context.Context, train model.Train) (model.Train, error) {
	err := execAffecting(ctx, store.db, "update train",
		`UPDATE trains SET number = $1, name = $2, type = $3 WHERE id = $4`,
		strings.TrimSpace(train.Number), train.Name, train.Type, train.ID,
	)
	if err != nil {
		return model.Train{}, err
	}
	return store.GetTrain(ctx, train.ID)
}

func (store *Store) DeleteTrain(ctx context.Context, id int64) error {
	return execAffecting(ctx, store.db, "delete train", `DELETE FROM trains WHERE id = $1`, id)
}
