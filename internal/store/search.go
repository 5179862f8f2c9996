package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

const searchTrainsQuery = `
SELECT s.id, s.status, s.delay_minutes,
       jf.departure_time, jt.arrival_time, jf.stop_order, jt.stop_order,
       t.id, t.number, t.name, t.type, t.created_at
  FROM schedules s
  JOIN trains t ON t.id = s.train_id
  JOIN journeys jf ON jf.schedule_id = s.id AND jf.station_id = $1
  JOIN journeys jt ON jt.schedule_id = s.id AND jt.station_id = $2
 WHERE jf.stop_order < jt.stop_order
   AND s.status <> $3
   AND jf.departure_time >= $4
   AND jf.departure_time < $5
 ORDER BY jf.departure_time, s.id`

var coachTypeOrder = []model.CoachType{model.CoachSeat, model.CoachBed}

type searchHit struct {
	result    model.TrainSearchResult
	trainID   int64
	fromOrder int
	toOrder   int
}

// SearchTrains finds the schedules leaving fromStationID on the UTC day of
// date and later calling at toStationID, with seat availability for that
// segment.
func (store *Store) SearchTrains(ctx context.Context, fromStationID, toStationID int64, date time.Time) ([]model.TrainSearchResult, error) {
	if fromStationID == 0 || toStationID == 0 {
		return nil, invalid("search needs departure and arrival stations")
	}
	if fromStationID == toStationID {
		return nil, invalid("departure and arrival stations are the same")
	}
	start, end := dayWindow(date)

	hits, err := store.searchHits(ctx, fromStationID, toStationID, start, end)
	if err != nil {
		return nil, err
	}

	results := make([]model.TrainSearchResult, 0, len(hits))
	for _, hit := range hits {
		coaches, err := trainCoaches(ctx, store.db, hit.trainID)
		if err != nil {
			return nil, err
		}
		taken, err := loadTakenSeats(ctx, store.db, hit.result.ScheduleID, hit.fromOrder, hit.toOrder)
		if err != nil {
			return nil, err
		}
		results = append(results, withAvailability(hit.result, coaches, taken))
	}
	return results, nil
}

func (store *Store) searchHits(ctx context.Context, fromStationID, toStationID int64, start, end time.Time) ([]searchHit, error) {
	rows, err := store.db.QueryContext(ctx, searchTrainsQuery,
		fromStationID, toStationID, model.StatusCancelled, start, end,
	)
	if err != nil {
		return nil, classify(err, "search trains")
	}
	defer rows.Close()

	hits := []searchHit{}
	for rows.Next() {
		var hit searchHit
		var departure, arrival sql.NullTime
		result := &hit.result
		err := rows.Scan(
			&result.ScheduleID,
			&result.Status,
			&result.DelayMinutes,
			&departure,
			&arrival,
			&hit.fromOrder,
			&hit.toOrder,
			&result.Train.ID,
			&result.Train.Number,
			&result.Train.Name,
			&result.Train.Type,
			&result.Train.CreatedAt,
		)
		if err != nil {
			return nil, classify(err, "search trains")
		}
		hit.trainID = result.Train.ID
		result.Train.CreatedAt = result.Train.CreatedAt.UTC()
		result.FromStationID = fromStationID
		result.ToStationID = toStationID
		result.DepartureTime = departure.Time.UTC()
		result.ArrivalTime = arrival.Time.UTC()
		result.Stops = hit.toOrder - hit.fromOrder
		hits = append(hits, hit)
	}
	return hits, classify(rows.Err(), "search trains")
}

func withAvailability(result model.TrainSearchResult, coaches []model.Coach, taken takenSeats) model.TrainSearchResult {
	byType := map[model.CoachType]*model.CoachAvailability{}
	for _, coach := range coaches {
		availability, ok := byType[coach.Type]
		if !ok {
			availability = &model.CoachAvailability{Type: coach.Type, MinPrice: coach.Price}
			byType[coach.Type] = availability
		}
		availability.Coaches++
		availability.Capacity += coach.Capacity
		for seat := 1; seat <= coach.Capacity; seat++ {
			if taken.has(coach.ID, seat) {
				availability.Booked++
			}
		}
		if coach.Price.LessThan(availability.MinPrice) {
			availability.MinPrice = coach.Price
		}
	}

	result.Coaches = []model.CoachAvailability{}
	var lowest *decimal.Decimal
	for _, coachType := range coachTypeOrder {
		availability, ok := byType[coachType]
		if !ok {
			continue
		}
		availability.Available = availability.Capacity - availability.Booked
		result.TotalSeats += availability.Capacity
		result.AvailableSeats += availability.Available
		if availability.Available > 0 && (lowest == nil || availability.MinPrice.LessThan(*lowest)) {
			price := availability.MinPrice
			lowest = &price
		}
		result.Coaches = append(result.Coaches, *availability)
	}
	result.LowestPrice = lowest
	return result
}
