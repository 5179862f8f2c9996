package store

import (
	"context"
	"database/sql"
	"time"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

// StatusEvent is one observation of a schedule's running state, as reported
// by a realtime feed.
type StatusEvent struct {
	ScheduleID   int64
	Status       model.ScheduleStatus
	DelayMinutes int
	ObservedAt   time.Time
}

var statusEventColumns = []string{"schedule_id", "status", "delay_minutes", "observed_at"}

// ApplyScheduleStatus sets the status and delay of the schedule carrying
// externalTripID. Completed schedules are left alone. The returned flag
// reports whether anything changed.
func (store *Store) ApplyScheduleStatus(ctx context.Context, externalTripID string, status model.ScheduleStatus, delayMinutes int) (model.Schedule, bool, error) {
	if !validStatus(status) {
		return model.Schedule{}, false, invalid("schedule status %q", status)
	}
	if delayMinutes < 0 {
		delayMinutes = 0
	}

	var schedule model.Schedule
	changed := false
	err := store.db.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+scheduleColumns+` FROM schedules WHERE external_trip_id = $1`+store.db.Dialect().LockClause(),
			externalTripID,
		)
		var err error
		schedule, err = scanSchedule(row)
		if err != nil {
			return classify(err, "apply schedule status")
		}
		if schedule.Status == model.StatusCompleted {
			return nil
		}
		if schedule.Status == status && schedule.DelayMinutes == delayMinutes {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE schedules SET status = $1, delay_minutes = $2 WHERE id = $3`,
			status, delayMinutes, schedule.ID,
		)
		if err != nil {
			return classify(err, "apply schedule status")
		}
		schedule.Status = status
		schedule.DelayMinutes = delayMinutes
		changed = true
		return nil
	})
	if err != nil {
		return model.Schedule{}, false, err
	}
	return schedule, changed, nil
}

// RecordStatusEvents bulk-loads status observations.
func (store *Store) RecordStatusEvents(ctx context.Context, events []StatusEvent) (int64, error) {
	copied, err := store.db.CopyFromSlice(ctx, "schedule_status_events", statusEventColumns, len(events), func(i int) ([]any, error) {
		event := events[i]
		return []any{event.ScheduleID, string(event.Status), event.DelayMinutes, normalizeTime(event.ObservedAt)}, nil
	})
	if err != nil {
		return 0, classify(err, "record status events")
	}
	return copied, nil
}

func (store *Store) ListStatusEvents(ctx context.Context, scheduleID int64, page Page) ([]StatusEvent, error) {
	var where whereClause
	where.add("schedule_id = ?", scheduleID)
	query := `SELECT schedule_id, status, delay_minutes, observed_at FROM schedule_status_events` +
		where.sql() + ` ORDER BY observed_at DESC, id DESC` + where.paginate(page)

	rows, err := store.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, classify(err, "list status events")
	}
	defer rows.Close()

	events := []StatusEvent{}
	for rows.Next() {
		var event StatusEvent
		if err := rows.Scan(&event.ScheduleID, &event.Status, &event.DelayMinutes, &event.ObservedAt); err != nil {
			return nil, classify(err, "list status events")
		}
		event.ObservedAt = event.ObservedAt.UTC()
		events = append(events, event)
	}
	return events, classify(rows.Err(), "list status events")
}
