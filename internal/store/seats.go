package store

import (
	"context"
	"fmt"

	database "tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
)

// A ticket sold for stops [dep, arr) blocks its seat for any request
// [from, to) with dep < to and arr > from.
const overlappingTicketsQuery = `
SELECT tk.coach_id, tk.seat_number
  FROM tickets tk
  JOIN journeys jd ON jd.schedule_id = tk.schedule_id AND jd.station_id = tk.departure_station_id
  JOIN journeys ja ON ja.schedule_id = tk.schedule_id AND ja.station_id = tk.arrival_station_id
 WHERE tk.schedule_id = $1
   AND tk.status = $2
   AND jd.stop_order < $3
   AND ja.stop_order > $4`

type takenSeats map[int64]map[int]bool

func (taken takenSeats) has(coachID int64, seat int) bool {
	return taken[coachID][seat]
}

func (taken takenSeats) mark(coachID int64, seat int) {
	if taken[coachID] == nil {
		taken[coachID] = map[int]bool{}
	}
	taken[coachID][seat] = true
}

func loadTakenSeats(ctx context.Context, conn database.DBTX, scheduleID int64, fromOrder, toOrder int) (takenSeats, error) {
	rows, err := conn.QueryContext(ctx, overlappingTicketsQuery, scheduleID, model.TicketActive, toOrder, fromOrder)
	if err != nil {
		return nil, classify(err, "load taken seats")
	}
	defer rows.Close()

	taken := takenSeats{}
	for rows.Next() {
		var coachID int64
		var seat int
		if err := rows.Scan(&coachID, &seat); err != nil {
			return nil, classify(err, "load taken seats")
		}
		taken.mark(coachID, seat)
	}
	return taken, classify(rows.Err(), "load taken seats")
}

// soldStopQuery counts active tickets whose segment starts at, ends at or
// passes through a stop order.
const soldStopQuery = `
SELECT COUNT(*)
  FROM tickets tk
  JOIN journeys jd ON jd.schedule_id = tk.schedule_id AND jd.station_id = tk.departure_station_id
  JOIN journeys ja ON ja.schedule_id = tk.schedule_id AND ja.station_id = tk.arrival_station_id
 WHERE tk.schedule_id = $1
   AND tk.status = $2
   AND jd.stop_order <= $3
   AND ja.stop_order >= $4`

func stopSold(ctx context.Context, conn database.DBTX, scheduleID int64, stopOrder int) (bool, error) {
	var count int
	err := conn.QueryRowContext(ctx, soldStopQuery, scheduleID, model.TicketActive, stopOrder, stopOrder).Scan(&count)
	if err != nil {
		return false, classify(err, "check sold stops")
	}
	return count > 0, nil
}

// activeTickets counts active tickets whose column matches id. column is
// always one of the fixed ticket foreign keys.
func activeTickets(ctx context.Context, conn database.DBTX, column string, id int64) (int, error) {
	var count int
	err := conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE `+column+` = $1 AND status = $2`,
		id, model.TicketActive,
	).Scan(&count)
	if err != nil {
		return 0, classify(err, "count active tickets")
	}
	return count, nil
}

// seatAllocator hands out seats of one train for one segment, remembering
// what it already gave away.
type seatAllocator struct {
	coaches []model.Coach
	byID    map[int64]model.Coach
	taken   takenSeats
}

func newSeatAllocator(coaches []model.Coach, taken takenSeats) *seatAllocator {
	byID := make(map[int64]model.Coach, len(coaches))
	for _, coach := range coaches {
		byID[coach.ID] = coach
	}
	return &seatAllocator{coaches: coaches, byID: byID, taken: taken}
}

func (allocator *seatAllocator) claim(coachID int64, seat int) (model.Coach, error) {
	coach, ok := allocator.byID[coachID]
	if !ok {
		return model.Coach{}, invalid("coach %d does not belong to this train", coachID)
	}
	if seat < 1 || seat > coach.Capacity {
		return model.Coach{}, invalid("coach %s has no seat %d", coach.Label, seat)
	}
	if allocator.taken.has(coachID, seat) {
		return model.Coach{}, fmt.Errorf("coach %s seat %d: %w", coach.Label, seat, ErrSeatTaken)
	}
	allocator.taken.mark(coachID, seat)
	return coach, nil
}

// assign picks the lowest free seat in the given coach, or in any coach of
// the given type when coachID is zero.
func (allocator *seatAllocator) assign(coachID int64, coachType model.CoachType) (model.Coach, int, error) {
	candidates := allocator.coaches
	if coachID != 0 {
		coach, ok := allocator.byID[coachID]
		if !ok {
			return model.Coach{}, 0, invalid("coach %d does not belong to this train", coachID)
		}
		candidates = []model.Coach{coach}
	}

	for _, coach := range candidates {
		if coachID == 0 && coachType != "" && coach.Type != coachType {
			continue
		}
		for seat := 1; seat <= coach.Capacity; seat++ {
			if !allocator.taken.has(coach.ID, seat) {
				allocator.taken.mark(coach.ID, seat)
				return coach, seat, nil
			}
		}
	}
	return model.Coach{}, 0, ErrSoldOut
}

func trainCoaches(ctx context.Context, conn database.DBTX, trainID int64) ([]model.Coach, error) {
	return listCoaches(ctx, conn, CoachFilter{TrainID: trainID}, Page{Limit: MaxPageSize})
}

// SeatMap lists taken and free seats of every coach for a segment.
func (store *Store) SeatMap(ctx context.Context, scheduleID, fromStationID, toStationID int64) (model.SeatMap, error) {
	schedule, err := store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return model.SeatMap{}, err
	}
	if fromStationID == 0 {
		fromStationID = schedule.StartStationID
	}
	if toStationID == 0 {
		toStationID = schedule.EndStationID
	}

	fromOrder, toOrder, err := segment(ctx, store.db, scheduleID, fromStationID, toStationID)
	if err != nil {
		return model.SeatMap{}, err
	}
	coaches, err := trainCoaches(ctx, store.db, schedule.TrainID)
	if err != nil {
		return model.SeatMap{}, err
	}
	taken, err := loadTakenSeats(ctx, store.db, scheduleID, fromOrder, toOrder)
	if err != nil {
		return model.SeatMap{}, err
	}

	seatMap := model.SeatMap{
		ScheduleID:    scheduleID,
		FromStationID: fromStationID,
		ToStationID:   toStationID,
		Coaches:       make([]model.CoachSeats, 0, len(coaches)),
	}
	for _, coach := range coaches {
		seats := model.CoachSeats{Coach: coach, Taken: []int{}, Free: []int{}}
		for seat := 1; seat <= coach.Capacity; seat++ {
			if taken.has(coach.ID, seat) {
				seats.Taken = append(seats.Taken, seat)
			} else {
				seats.Free = append(seats.Free, seat)
			}
		}
		seatMap.Coaches = append(seatMap.Coaches, seats)
	}
	return seatMap, nil
}
