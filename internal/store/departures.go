package store

import (
	"context"
	"database/sql"
	"time"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

const departuresQuery = `
SELECT s.id, s.status, s.delay_minutes, jf.departure_time,
       t.number, t.name, e.code, e.name
  FROM journeys jf
  JOIN schedules s ON s.id = jf.schedule_id
  JOIN trains t ON t.id = s.train_id
  JOIN stations e ON e.id = s.end_station_id
 WHERE jf.station_id = $1
   AND jf.departure_time >= $2
   AND jf.departure_time < $3
   AND jf.station_id <> s.end_station_id
   AND s.status <> $4
 ORDER BY jf.departure_time, s.id
 LIMIT $5`

// Departures lists trains scheduled to leave stationID in [from, from+window).
// Cancelled runs stay on the list; completed runs do not. A schedule's end
// station never lists it, even if its last stop carries a departure time.
func (store *Store) Departures(ctx context.Context, stationID int64, from time.Time, window time.Duration, limit int) ([]model.Departure, error) {
	if window <= 0 {
		return nil, invalid("departure window %s", window)
	}
	limit = Page{Limit: limit}.normalize().Limit
	from = normalizeTime(from)

	rows, err := store.db.QueryContext(ctx, departuresQuery,
		stationID, from, from.Add(window), model.StatusCompleted, limit,
	)
	if err != nil {
		return nil, classify(err, "list departures")
	}
	defer rows.Close()

	departures := []model.Departure{}
	for rows.Next() {
		var departure model.Departure
		var departureTime sql.NullTime
		err := rows.Scan(
			&departure.ScheduleID,
			&departure.Status,
			&departure.DelayMinutes,
			&departureTime,
			&departure.TrainNumber,
			&departure.TrainName,
			&departure.DestinationCode,
			&departure.DestinationName,
		)
		if err != nil {
			return nil, classify(err, "list departures")
		}
		departure.DepartureTime = departureTime.Time.UTC()
		departures = append(departures, departure)
	}
	return departures, classify(rows.Err(), "list departures")
}
