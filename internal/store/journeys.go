package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
)

type JourneyFilter struct {
	ScheduleID int64
	StationID  int64
}

const journeyColumns = `id, schedule_id, station_id, stop_order, arrival_time, departure_time`

func scanJourney(row rowScanner) (model.Journey, error) {
	var journey model.Journey
	var arrival, departure sql.NullTime
	err := row.Scan(&journey.ID, &journey.ScheduleID, &journey.StationID, &journey.StopOrder, &arrival, &departure)
	journey.ArrivalTime = timePtr(arrival)
	journey.DepartureTime = timePtr(departure)
	return journey, err
}

func validateJourney(journey model.Journey) error {
	if journey.StopOrder < 0 {
		return invalid("stop order %d", journey.StopOrder)
	}
	if journey.ArrivalTime == nil && journey.DepartureTime == nil {
		return invalid("stop needs an arrival or a departure time")
	}
	if journey.ArrivalTime != nil && journey.DepartureTime != nil && journey.DepartureTime.Before(*journey.ArrivalTime) {
		return invalid("stop departs before it arrives")
	}
	return nil
}

func insertJourney(ctx context.Context, conn database.DBTX, journey model.Journey) (model.Journey, error) {
	if err := validateJourney(journey); err != nil {
		return model.Journey{}, err
	}
	journey.ArrivalTime = normalizeTimePtr(journey.ArrivalTime)
	journey.DepartureTime = normalizeTimePtr(journey.DepartureTime)

	err := conn.QueryRowContext(ctx,
		`INSERT INTO journeys (schedule_id, station_id, stop_order, arrival_time, departure_time)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		journey.ScheduleID, journey.StationID, journey.StopOrder,
		nullableTime(journey.ArrivalTime), nullableTime(journey.DepartureTime),
	).Scan(&journey.ID)
	if err != nil {
		return model.Journey{}, classify(err, "create journey")
	}
	return journey, nil
}

func (store *Store) CreateJourney(ctx context.Context, journey model.Journey) (model.Journey, error) {
	return insertJourney(ctx, store.db, journey)
}

func getJourney(ctx context.Context, conn database.DBTX, id int64) (model.Journey, error) {
	row := conn.QueryRowContext(ctx, `SELECT `+journeyColumns+` FROM journeys WHERE id = $1`, id)
	journey, err := scanJourney(row)
	if err != nil {
		return model.Journey{}, classify(err, "get journey")
	}
	return journey, nil
}

func (store *Store) GetJourney(ctx context.Context, id int64) (model.Journey, error) {
	return getJourney(ctx, store.db, id)
}

func listJourneys(ctx context.Context, conn database.DBTX, filter JourneyFilter, page Page) ([]model.Journey, error) {
	var where whereClause
	if filter.ScheduleID != 0 {
		where.add("schedule_id = ?", filter.ScheduleID)
	}
	if filter.StationID != 0 {
		where.add("station_id = ?", filter.StationID)
	}
	query := `SELECT ` + journeyColumns + ` FROM journeys` + where.sql() + ` ORDER BY schedule_id, stop_order` + where.paginate(page)

	rows, err := conn.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list journeys")
	}
	defer rows.Close()

	journeys := []model.Journey{}
	for rows.Next() {
		journey, err := scanJourney(rows)
		if err != nil {
			return nil, classify(err, "list journeys")
		}
		journeys = append(journeys, journey)
	}
	return journeys, classify(rows.Err(), "list journeys")
}

func (store *Store) ListJourneys(ctx context.Context, filter JourneyFilter, page Page) ([]model.Journey, error) {
	return listJourneys(ctx, store.db, filter, page)
}

// UpdateJourney changes a stop. Times can always change; moving a stop to
// another schedule, station or position is refused while an active ticket
// starts, ends or passes through it, or when the new position falls inside a
// sold segment.
func (store *Store) UpdateJourney(ctx context.Context, journey model.Journey) (model.Journey, error) {
	if err := validateJourney(journey); err != nil {
		return model.Journey{}, err
	}

	lock := store.db.Dialect().LockClause()
	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getJourney(ctx, tx, journey.ID)
		if err != nil {
			return err
		}
		if _, err := getSchedule(ctx, tx, current.ScheduleID, lock); err != nil {
			return err
		}

		moved := current.ScheduleID != journey.ScheduleID ||
			current.StationID != journey.StationID ||
			current.StopOrder != journey.StopOrder
		if moved {
			sold, err := stopSold(ctx, tx, current.ScheduleID, current.StopOrder)
			if err != nil {
				return err
			}
			if sold {
				return fmt.Errorf("update journey: stop %d is on a sold segment: %w", current.StopOrder, ErrConflict)
			}

			if journey.ScheduleID != current.ScheduleID {
				_, err := getSchedule(ctx, tx, journey.ScheduleID, lock)
				if err != nil && !errors.Is(err, ErrNotFound) {
					return err
				}
			}
			sold, err = stopSold(ctx, tx, journey.ScheduleID, journey.StopOrder)
			if err != nil {
				return err
			}
			if sold {
				return fmt.Errorf("update journey: stop %d is inside a sold segment: %w", journey.StopOrder, ErrConflict)
			}
		}

		return execAffecting(ctx, tx, "update journey",
			`UPDATE journeys SET schedule_id = $1, station_id = $2, stop_order = $3, arrival_time = $4, departure_time = $5 WHERE id = $6`,
			journey.ScheduleID, journey.StationID, journey.StopOrder,
			nullableTime(normalizeTimePtr(journey.ArrivalTime)), nullableTime(normalizeTimePtr(journey.DepartureTime)), journey.ID,
		)
	})
	if err != nil {
		return model.Journey{}, err
	}
	return store.GetJourney(ctx, journey.ID)
}

// DeleteJourney refuses to remove a stop where an active ticket boards or
// alights.
func (store *Store) DeleteJourney(ctx context.Context, id int64) error {
	return store.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getJourney(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := getSchedule(ctx, tx, current.ScheduleID, store.db.Dialect().LockClause()); err != nil {
			return err
		}

		var count int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tickets
			  WHERE schedule_id = $1 AND status = $2 AND (departure_station_id = $3 OR arrival_station_id = $4)`,
			current.ScheduleID, model.TicketActive, current.StationID, current.StationID,
		).Scan(&count)
		if err != nil {
			return classify(err, "delete journey")
		}
		if count > 0 {
			return fmt.Errorf("delete journey: %d active tickets use this stop: %w", count, ErrReferenced)
		}

		return execAffecting(ctx, tx, "delete journey", `DELETE FROM journeys WHERE id = $1`, id)
	})
}

// segment resolves the stop orders of a departure/arrival station pair on a
// schedule. The departure stop must come strictly before the arrival stop.
func segment(ctx context.Context, conn database.DBTX, scheduleID, fromStationID, toStationID int64) (int, int, error) {
	order := func(stationID int64) (int, error) {
		var stopOrder int
		err := conn.QueryRowContext(ctx,
			`SELECT stop_order FROM journeys WHERE schedule_id = $1 AND station_id = $2`,
			scheduleID, stationID,
		).Scan(&stopOrder)
		if err == sql.ErrNoRows {
			return 0, invalid("station %d is not served by schedule %d", stationID, scheduleID)
		}
		if err != nil {
			return 0, classify(err, "resolve stop")
		}
		return stopOrder, nil
	}

	fromOrder, err := order(fromStationID)
	if err != nil {
		return 0, 0, err
	}
	toOrder, err := order(toStationID)
	if err != nil {
		return 0, 0, err
	}
	if fromOrder >= toOrder {
		return 0, 0, fmt.Errorf("station %d is not before station %d: %w", fromStationID, toStationID, ErrInvalid)
	}
	return fromOrder, toOrder, nil
}
