package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
)

type ScheduleFilter struct {
	TrainID        int64
	Status         model.ScheduleStatus
	Date           *time.Time
	ExternalTripID string
}

const scheduleColumns = `id, train_id, start_station_id, end_station_id, departure_time, arrival_time, status, delay_minutes, external_trip_id`

func scanSchedule(row rowScanner) (model.Schedule, error) {
	var schedule model.Schedule
	var externalTripID sql.NullString
	err := row.Scan(
		&schedule.ID,
		&schedule.TrainID,
		&schedule.StartStationID,
		&schedule.EndStationID,
		&schedule.DepartureTime,
		&schedule.ArrivalTime,
		&schedule.Status,
		&schedule.DelayMinutes,
		&externalTripID,
	)
	schedule.DepartureTime = schedule.DepartureTime.UTC()
	schedule.ArrivalTime = schedule.ArrivalTime.UTC()
	if externalTripID.Valid {
		schedule.ExternalTripID = &externalTripID.String
	}
	return schedule, err
}

func validStatus(status model.ScheduleStatus) bool {
	switch status {
	case model.StatusOnTime, model.StatusDelayed, model.StatusCancelled, model.StatusCompleted:
		return true
	}
	return false
}

func validateSchedule(schedule model.Schedule) error {
	if schedule.StartStationID == schedule.EndStationID {
		return invalid("schedule must start and end at different stations")
	}
	if !schedule.ArrivalTime.After(schedule.DepartureTime) {
		return invalid("schedule arrival must be after departure")
	}
	if !validStatus(schedule.Status) {
		return invalid("schedule status %q", schedule.Status)
	}
	if schedule.DelayMinutes < 0 {
		return invalid("schedule delay %d", schedule.DelayMinutes)
	}
	return nil
}

// validateStops checks that stops run from the schedule's start station to
// its end station in strictly increasing order and time.
func validateStops(schedule model.Schedule, stops []model.Journey) error {
	if len(stops) < 2 {
		return invalid("schedule needs at least two stops")
	}
	if stops[0].StationID != schedule.StartStationID {
		return invalid("first stop must be the start station")
	}
	if stops[len(stops)-1].StationID != schedule.EndStationID {
		return invalid("last stop must be the end station")
	}

	seen := make(map[int64]bool, len(stops))
	var previous *time.Time
	for i, stop := range stops {
		if seen[stop.StationID] {
			return invalid("station %d appears twice", stop.StationID)
		}
		seen[stop.StationID] = true
		if i > 0 && stop.StopOrder <= stops[i-1].StopOrder {
			return invalid("stop orders must increase")
		}
		for _, t := range []*time.Time{stop.ArrivalTime, stop.DepartureTime} {
			if t == nil {
				continue
			}
			if previous != nil && t.Before(*previous) {
				return invalid("stop times must not go backwards")
			}
			previous = t
		}
	}
	return nil
}

func endpointStops(schedule model.Schedule) []model.Journey {
	departure := schedule.DepartureTime
	arrival := schedule.ArrivalTime
	return []model.Journey{
		{StationID: schedule.StartStationID, StopOrder: 0, DepartureTime: &departure},
		{StationID: schedule.EndStationID, StopOrder: 1, ArrivalTime: &arrival},
	}
}

// CreateSchedule stores a schedule with its stops. Without explicit stops the
// start and end stations become the only two stops.
func (store *Store) CreateSchedule(ctx context.Context, schedule model.Schedule, stops []model.Journey) (model.Schedule, []model.Journey, error) {
	if schedule.Status == "" {
		schedule.Status = model.StatusOnTime
	}
	schedule.DepartureTime = normalizeTime(schedule.DepartureTime)
	schedule.ArrivalTime = normalizeTime(schedule.ArrivalTime)
	if err := validateSchedule(schedule); err != nil {
		return model.Schedule{}, nil, err
	}
	if len(stops) == 0 {
		stops = endpointStops(schedule)
	}
	if err := validateStops(schedule, stops); err != nil {
		return model.Schedule{}, nil, err
	}

	created := make([]model.Journey, 0, len(stops))
	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO schedules (train_id, start_station_id, end_station_id, departure_time, arrival_time, status, delay_minutes, external_trip_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			schedule.TrainID, schedule.StartStationID, schedule.EndStationID,
			schedule.DepartureTime, schedule.ArrivalTime, schedule.Status,
			schedule.DelayMinutes, nullableString(schedule.ExternalTripID),
		).Scan(&schedule.ID)
		if err != nil {
			return classify(err, "create schedule")
		}

		for _, stop := range stops {
			stop.ScheduleID = schedule.ID
			journey, err := insertJourney(ctx, tx, stop)
			if err != nil {
				return err
			}
			created = append(created, journey)
		}
		return nil
	})
	if err != nil {
		return model.Schedule{}, nil, err
	}
	return schedule, created, nil
}

func getSchedule(ctx context.Context, conn database.DBTX, id int64, lock string) (model.Schedule, error) {
	row := conn.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`+lock, id)
	schedule, err := scanSchedule(row)
	if err != nil {
		return model.Schedule{}, classify(err, "get schedule")
	}
	return schedule, nil
}

func (store *Store) GetSchedule(ctx context.Context, id int64) (model.Schedule, error) {
	return getSchedule(ctx, store.db, id, "")
}

func (store *Store) ListSchedules(ctx context.Context, filter ScheduleFilter, page Page) ([]model.Schedule, error) {
	var where whereClause
	if filter.TrainID != 0 {
		where.add("train_id = ?", filter.TrainID)
	}
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	if filter.Date != nil {
		start, end := dayWindow(*filter.Date)
		where.add("departure_time >= ? AND departure_time < ?", start, end)
	}
	if filter.ExternalTripID != "" {
		where.add("external_trip_id = ?", filter.ExternalTripID)
	}
	query := `SELECT ` + scheduleColumns + ` FROM schedules` + where.sql() + ` ORDER BY departure_time, id` + where.paginate(page)

	rows, err := store.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list schedules")
	}
	defer rows.Close()

	schedules := []model.Schedule{}
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, classify(err, "list schedules")
		}
		schedules = append(schedules, schedule)
	}
	return schedules, classify(rows.Err(), "list schedules")
}

// UpdateSchedule keeps a schedule on its train while active tickets hold
// seats on it.
func (store *Store) UpdateSchedule(ctx context.Context, schedule model.Schedule) (model.Schedule, error) {
	schedule.DepartureTime = normalizeTime(schedule.DepartureTime)
	schedule.ArrivalTime = normalizeTime(schedule.ArrivalTime)
	if err := validateSchedule(schedule); err != nil {
		return model.Schedule{}, err
	}

	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getSchedule(ctx, tx, schedule.ID, store.db.Dialect().LockClause())
		if err != nil {
			return err
		}
		if current.TrainID != schedule.TrainID {
			sold, err := activeTickets(ctx, tx, "schedule_id", schedule.ID)
			if err != nil {
				return err
			}
			if sold > 0 {
				return fmt.Errorf("update schedule: %d active tickets hold seats on train %d: %w", sold, current.TrainID, ErrConflict)
			}
		}

		return execAffecting(ctx, tx, "update schedule",
			`UPDATE schedules
			    SET train_id = $1, start_station_id = $2, end_station_id = $3, departure_time = $4,
			        arrival_time = $5, status = $6, delay_minutes = $7, external_trip_id = $8
			  WHERE id = $9`,
			schedule.TrainID, schedule.StartStationID, schedule.EndStationID,
			schedule.DepartureTime, schedule.ArrivalTime, schedule.Status,
			schedule.DelayMinutes, nullableString(schedule.ExternalTripID), schedule.ID,
		)
	})
	if err != nil {
		return model.Schedule{}, err
	}
	return store.GetSchedule(ctx, schedule.ID)
}

func (store *Store) DeleteSchedule(ctx context.Context, id int64) error {
	return execAffecting(ctx, store.db, "delete schedule", `DELETE FROM schedules WHERE id = $1`, id)
}

// dayWindow returns the UTC calendar day containing t as [start, end).
func dayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func nullableString(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
