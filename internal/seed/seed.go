package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

//go:embed demo.yaml
var demoYAML []byte

type Station struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	City string `yaml:"city"`
}

type Coach struct {
	Label    string          `yaml:"label"`
	Type     model.CoachType `yaml:"type"`
	Capacity int             `yaml:"capacity"`
	Price    decimal.Decimal `yaml:"price"`
}

type Train struct {
	Number  string  `yaml:"number"`
	Name    string  `yaml:"name"`
	Type    string  `yaml:"type"`
	Coaches []Coach `yaml:"coaches"`
}

// Stop offsets are relative to the schedule's first departure.
type Stop struct {
	Station string         `yaml:"station"`
	Arrive  *time.Duration `yaml:"arrive"`
	Depart  *time.Duration `yaml:"depart"`
}

type Schedule struct {
	Train   string `yaml:"train"`
	TripID  string `yaml:"trip_id"`
	Day     int    `yaml:"day"`
	Departs string `yaml:"departs"`
	Stops   []Stop `yaml:"stops"`
}

type User struct {
	Email    string     `yaml:"email"`
	Name     string     `yaml:"name"`
	Password string     `yaml:"password"`
	Role     model.Role `yaml:"role"`
}

// Dataset is a fixture file: catalog rows plus login accounts.
type Dataset struct {
	Stations  []Station  `yaml:"stations"`
	Trains    []Train    `yaml:"trains"`
	Schedules []Schedule `yaml:"schedules"`
	Users     []User     `yaml:"users"`
}

type Summary struct {
	Stations  int
	Trains    int
	Coaches   int
	Schedules int
	Users     int
	Skipped   int
}

func Parse(data []byte) (Dataset, error) {
	var dataset Dataset
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&dataset); err != nil && !errors.Is(err, io.EOF) {
		return Dataset{}, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return dataset, nil
}

// Load reads a fixture file, or the embedded demo network when path is empty.
func Load(path string) (Dataset, error) {
	if path == "" {
		return Parse(demoYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, err
	}
	return Parse(data)
}

func (schedule Schedule) departure(today time.Time) (time.Time, error) {
	clock, err := time.Parse("15:04", schedule.Departs)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule %s: departs %q is not HH:MM", schedule.TripID, schedule.Departs)
	}
	year, month, day := today.UTC().Date()
	return time.Date(year, month, day+schedule.Day, clock.Hour(), clock.Minute(), 0, 0, time.UTC), nil
}

func offset(start time.Time, duration *time.Duration) *time.Time {
	if duration == nil {
		return nil
	}
	t := start.Add(*duration)
	return &t
}

// Apply inserts the dataset. Rows that already exist (matched by station
// code, train number, trip id or email) are left alone, so seeding twice is
// harmless. Schedule days count from today.
func Apply(ctx context.Context, ticketingStore *store.Store, dataset Dataset, today time.Time) (Summary, error) {
	var summary Summary

	stationIDs := make(map[string]int64, len(dataset.Stations))
	for _, row := range dataset.Stations {
		station, err := ticketingStore.GetStationByCode(ctx, row.Code)
		switch {
		case err == nil:
			summary.Skipped++
		case errors.Is(err, store.ErrNotFound):
			station, err = ticketingStore.CreateStation(ctx, model.Station{Code: row.Code, Name: row.Name, City: row.City})
			if err != nil {
				return summary, fmt.Errorf("station %s: %w", row.Code, err)
			}
			summary.Stations++
		default:
			return summary, err
		}
		stationIDs[station.Code] = station.ID
	}

	trainIDs := make(map[string]int64, len(dataset.Trains))
	for _, row := range dataset.Trains {
		train, err := ticketingStore.GetTrainByNumber(ctx, row.Number)
		if err == nil {
			summary.Skipped++
			trainIDs[train.Number] = train.ID
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return summary, err
		}

		train, err = ticketingStore.CreateTrain(ctx, model.Train{Number: row.Number, Name: row.Name, Type: row.Type})
		if err != nil {
			return summary, fmt.Errorf("train %s: %w", row.Number, err)
		}
		summary.Trains++
		trainIDs[train.Number] = train.ID

		for _, coach := range row.Coaches {
			_, err := ticketingStore.CreateCoach(ctx, model.Coach{
				TrainID:  train.ID,
				Label:    coach.Label,
				Type:     coach.Type,
				Capacity: coach.Capacity,
				Price:    coach.Price,
			})
			if err != nil {
				return summary, fmt.Errorf("train %s coach %s: %w", row.Number, coach.Label, err)
			}
			summary.Coaches++
		}
	}

	for _, row := range dataset.Schedules {
		created, err := applySchedule(ctx, ticketingStore, row, today, trainIDs, stationIDs)
		if err != nil {
			return summary, err
		}
		if created {
			summary.Schedules++
		} else {
			summary.Skipped++
		}
	}

	for _, row := range dataset.Users {
		_, err := ticketingStore.GetUserByEmail(ctx, row.Email)
		if err == nil {
			summary.Skipped++
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return summary, err
		}
		hash, err := authz.HashPassword(row.Password)
		if err != nil {
			return summary, fmt.Errorf("user %s: %w", row.Email, err)
		}
		role := row.Role
		if role == "" {
			role = model.RoleCustomer
		}
		if _, err := ticketingStore.CreateUser(ctx, model.User{Email: row.Email, Name: row.Name, Role: role, PasswordHash: hash}); err != nil {
			return summary, fmt.Errorf("user %s: %w", row.Email, err)
		}
		summary.Users++
	}

	return summary, nil
}

func applySchedule(ctx context.Context, ticketingStore *store.Store, row Schedule, today time.Time, trainIDs, stationIDs map[string]int64) (bool, error) {
	if row.TripID != "" {
		existing, err := ticketingStore.ListSchedules(ctx, store.ScheduleFilter{ExternalTripID: row.TripID}, store.Page{Limit: 1})
		if err != nil {
			return false, err
		}
		if len(existing) > 0 {
			return false, nil
		}
	}

	trainID, ok := trainIDs[row.Train]
	if !ok {
		return false, fmt.Errorf("schedule %s: unknown train %q", row.TripID, row.Train)
	}
	if len(row.Stops) < 2 {
		return false, fmt.Errorf("schedule %s: needs at least two stops", row.TripID)
	}
	start, err := row.departure(today)
	if err != nil {
		return false, err
	}

	stops := make([]model.Journey, len(row.Stops))
	for i, stop := range row.Stops {
		stationID, ok := stationIDs[stop.Station]
		if !ok {
			return false, fmt.Errorf("schedule %s: unknown station %q", row.TripID, stop.Station)
		}
		stops[i] = model.Journey{
			StationID:     stationID,
			StopOrder:     i,
			ArrivalTime:   offset(start, stop.Arrive),
			DepartureTime: offset(start, stop.Depart),
		}
	}
	first, last := &stops[0], &stops[len(stops)-1]
	first.ArrivalTime = nil
	first.DepartureTime = &start
	last.DepartureTime = nil
	if last.ArrivalTime == nil {
		return false, fmt.Errorf("schedule %s: last stop needs an arrival offset", row.TripID)
	}

	schedule := model.Schedule{
		TrainID:        trainID,
		StartStationID: first.StationID,
		EndStationID:   last.StationID,
		DepartureTime:  start,
		ArrivalTime:    *last.ArrivalTime,
		Status:         model.StatusOnTime,
	}
	if row.TripID != "" {
		tripID := row.TripID
		schedule.ExternalTripID = &tripID
	}
	if _, _, err := ticketingStore.CreateSchedule(ctx, schedule, stops); err != nil {
		return false, fmt.Errorf("schedule %s: %w", row.TripID, err)
	}
	return true, nil
}
