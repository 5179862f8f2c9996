package store

import (
	"context"
	"strings"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

type StationFilter struct {
	Query string
}

const stationColumns = `id, code, name, city, created_at`

func scanStation(row rowScanner) (model.Station, error) {
	var station model.Station
	err := row.Scan(&station.ID, &station.Code, &station.Name, &station.City, &station.CreatedAt)
	station.CreatedAt = station.CreatedAt.UTC()
	return station, err
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (store *Store) CreateStation(ctx context.Context, station model.Station) (model.Station, error) {
	station.Code = normalizeCode(station.Code)
	station.CreatedAt = store.timestamp()

	err := store.db.QueryRowContext(ctx,
		`INSERT INTO stations (code, name, city, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		station.Code, station.Name, station.City, station.CreatedAt,
	).Scan(&station.ID)
	if err != nil {
		return model.Station{}, classify(err, "create station")
	}
	return station, nil
}

func (store *Store) GetStation(ctx context.Context, id int64) (model.Station, error) {
	row := store.db.QueryRowContext(ctx, `SELECT `+stationColumns+` FROM stations WHERE id = $1`, id)
	station, err := scanStation(row)
	if err != nil {
		return model.Station{}, classify(err, "get station")
	}
	return station, nil
}

func (store *Store) GetStationByCode(ctx context.Context, code string) (model.Station, error) {
	row := store.db.QueryRowContext(ctx, `SELECT `+stationColumns+` FROM stations WHERE code = $1`, normalizeCode(code))
	station, err := scanStation(row)
	if err != nil {
		return model.Station{}, classify(err, "get station")
	}
	return station, nil
}

func (store *Store) ListStations(ctx context.Context, filter StationFilter, page Page) ([]model.Station, error) {
	var where whereClause
	if strings.TrimSpace(filter.Query) != "" {
		pattern := likePattern(filter.Query)
		where.add("(LOWER(name) LIKE ? OR LOWER(code) LIKE ? OR LOWER(city) LIKE ?)", pattern, pattern, pattern)
	}
	query := `SELECT ` + stationColumns + ` FROM stations` + where.sql() + ` ORDER BY name, id` + where.paginate(page)

	rows, err := store.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list stations")
	}
	defer rows.Close()

	stations := []model.Station{}
	for rows.Next() {
		station, err := scanStation(rows)
		if err != nil {
			return nil, classify(err, "list stations")
		}
		stations = append(stations, station)
	}
	return stations, classify(rows.Err(), "list stations")
}

func (store *Store) UpdateStation(ctx context.Context, station model.Station) (model.Station, error) {
	station.Code = normalizeCode(station.Code)
	err := execAffecting(ctx, store.db, "update station",
		`UPDATE stations SET code = $1, name = $2, city = $3 WHERE id = $4`,
		station.Code, station.Name, station.City, station.ID,
	)
	if err != nil {
		return model.Station{}, err
	}
	return store.GetStation(ctx, station.ID)
}

func (store *Store) DeleteStation(ctx context.Context, id int64) error {
	return execAffecting(ctx, store.db, "delete station", `DELETE FROM stations WHERE id = $1`, id)
}
