package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

const (
	dashboardDays      = 7
	dashboardTopRoutes = 5
	dashboardRecent    = 5
)

// Dashboard gathers the admin overview as of now. Its queries run
// concurrently and the first failure cancels the rest.
func (store *Store) Dashboard(ctx context.Context, now time.Time) (model.Dashboard, error) {
	now = normalizeTime(now)
	dashboard := model.Dashboard{GeneratedAt: now}
	group, ctx := errgroup.WithContext(ctx)

	counts := []struct {
		target *int64
		query  string
		args   []any
	}{
		{&dashboard.Stations, `SELECT COUNT(*) FROM stations`, nil},
		{&dashboard.Trains, `SELECT COUNT(*) FROM trains`, nil},
		{&dashboard.Coaches, `SELECT COUNT(*) FROM coaches`, nil},
		{&dashboard.Schedules, `SELECT COUNT(*) FROM schedules`, nil},
		{&dashboard.Passengers, `SELECT COUNT(*) FROM passengers`, nil},
		{&dashboard.Users, `SELECT COUNT(*) FROM users`, nil},
		{&dashboard.ConfirmedBookings, `SELECT COUNT(*) FROM bookings WHERE status = $1`, []any{model.BookingConfirmed}},
		{&dashboard.ActiveTickets, `SELECT COUNT(*) FROM tickets WHERE status = $1`, []any{model.TicketActive}},
	}
	for _, count := range counts {
		count := count
		group.Go(func() error {
			return classify(store.db.QueryRowContext(ctx, count.query, count.args...).Scan(count.target), "dashboard count")
		})
	}

	group.Go(func() error {
		start, end := dayWindow(now)
		err := store.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schedules WHERE departure_time >= $1 AND departure_time < $2 AND status <> $3`,
			start, end, model.StatusCancelled,
		).Scan(&dashboard.DepartingToday)
		return classify(err, "dashboard departures")
	})
	group.Go(func() error {
		var revenue decimal.NullDecimal
		err := store.db.QueryRowContext(ctx,
			`SELECT SUM(total_amount) FROM bookings WHERE status = $1`, model.BookingConfirmed,
		).Scan(&revenue)
		dashboard.Revenue = revenue.Decimal.Round(2)
		return classify(err, "dashboard revenue")
	})
	group.Go(func() (err error) {
		dashboard.ScheduleStatuses, err = store.scheduleStatuses(ctx)
		return err
	})
	group.Go(func() (err error) {
		dashboard.BookingsByDay, err = store.bookingsByDay(ctx, now)
		return err
	})
	group.Go(func() (err error) {
		dashboard.TopRoutes, err = store.topRoutes(ctx)
		return err
	})
	group.Go(func() (err error) {
		dashboard.RecentBookings, err = store.recentBookings(ctx)
		return err
	})

	if err := group.Wait(); err != nil {
		return model.Dashboard{}, err
	}
	return dashboard, nil
}

func (store *Store) scheduleStatuses(ctx context.Context) (map[string]int64, error) {
	rows, err := store.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM schedules GROUP BY status`)
	if err != nil {
		return nil, classify(err, "dashboard statuses")
	}
	defer rows.Close()

	statuses := map[string]int64{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, classify(err, "dashboard statuses")
		}
		statuses[status] = count
	}
	return statuses, classify(rows.Err(), "dashboard statuses")
}

// bookingsByDay buckets the last week of bookings by UTC day, oldest first.
// Revenue only counts confirmed bookings.
func (store *Store) bookingsByDay(ctx context.Context, now time.Time) ([]model.DailyBookings, error) {
	today, _ := dayWindow(now)
	first := today.AddDate(0, 0, -(dashboardDays - 1))

	days := make([]model.DailyBookings, dashboardDays)
	index := make(map[string]int, dashboardDays)
	for i := range days {
		date := first.AddDate(0, 0, i).Format(time.DateOnly)
		days[i] = model.DailyBookings{Date: date, Revenue: decimal.Zero}
		index[date] = i
	}

	rows, err := store.db.QueryContext(ctx,
		`SELECT booked_at, status, total_amount FROM bookings WHERE booked_at >= $1`, first,
	)
	if err != nil {
		return nil, classify(err, "dashboard bookings")
	}
	defer rows.Close()

	for rows.Next() {
		var bookedAt time.Time
		var status model.BookingStatus
		var amount decimal.Decimal
		if err := rows.Scan(&bookedAt, &status, &amount); err != nil {
			return nil, classify(err, "dashboard bookings")
		}
		i, ok := index[bookedAt.UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		days[i].Bookings++
		if status == model.BookingConfirmed {
			days[i].Revenue = days[i].Revenue.Add(amount)
		}
	}
	return days, classify(rows.Err(), "dashboard bookings")
}

func (store *Store) topRoutes(ctx context.Context) ([]model.RouteSales, error) {
	rows, err := store.db.QueryContext(ctx, `
		SELECT fs.name, ts.name, COUNT(*)
		  FROM tickets tk
		  JOIN stations fs ON fs.id = tk.departure_station_id
		  JOIN stations ts ON ts.id = tk.arrival_station_id
		 WHERE tk.status = $1
		 GROUP BY fs.name, ts.name
		 ORDER BY 3 DESC, 1, 2
		 LIMIT $2`,
		model.TicketActive, dashboardTopRoutes,
	)
	if err != nil {
		return nil, classify(err, "dashboard routes")
	}
	defer rows.Close()

	routes := []model.RouteSales{}
	for rows.Next() {
		var route model.RouteSales
		if err := rows.Scan(&route.From, &route.To, &route.Tickets); err != nil {
			return nil, classify(err, "dashboard routes")
		}
		routes = append(routes, route)
	}
	return routes, classify(rows.Err(), "dashboard routes")
}

func (store *Store) recentBookings(ctx context.Context) ([]model.BookingSummary, error) {
	rows, err := store.db.QueryContext(ctx, `
		SELECT b.id, b.reference, p.name, t.number, b.status, b.total_amount, b.booked_at
		  FROM bookings b
		  JOIN passengers p ON p.id = b.passenger_id
		  JOIN schedules s ON s.id = b.schedule_id
		  JOIN trains t ON t.id = s.train_id
		 ORDER BY b.booked_at DESC, b.id DESC
		 LIMIT $1`,
		dashboardRecent,
	)
	if err != nil {
		return nil, classify(err, "dashboard recent bookings")
	}
	defer rows.Close()

	bookings := []model.BookingSummary{}
	for rows.Next() {
		var summary model.BookingSummary
		err := rows.Scan(
			&summary.ID,
			&summary.Reference,
			&summary.PassengerName,
			&summary.TrainNumber,
			&summary.Status,
			&summary.TotalAmount,
			&summary.BookedAt,
		)
		if err != nil {
			return nil, classify(err, "dashboard recent bookings")
		}
		summary.BookedAt = summary.BookedAt.UTC()
		bookings = append(bookings, summary)
	}
	return bookings, classify(rows.Err(), "dashboard recent bookings")
}
