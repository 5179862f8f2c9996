package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Station struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
}

type Train struct {
	ID        int64     `json:"id"`
	Number    string    `json:"number"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type CoachType string

const (
	CoachSeat CoachType = "seat"
	CoachBed  CoachType = "bed"
)

// Coach is a physical car on a train. Seats are numbered 1..Capacity.
type Coach struct {
	ID       int64           `json:"id"`
	TrainID  int64           `json:"train_id"`
	Label    string          `json:"label"`
	Type     CoachType       `json:"type"`
	Capacity int             `json:"capacity"`
	Price    decimal.Decimal `json:"price"`
}

type ScheduleStatus string

const (
	StatusOnTime    ScheduleStatus = "on-time"
	StatusDelayed   ScheduleStatus = "delayed"
	StatusCancelled ScheduleStatus = "cancelled"
	StatusCompleted ScheduleStatus = "completed"
)

// Bookable reports whether seats may still be sold on a schedule in this state.
func (status ScheduleStatus) Bookable() bool {
	return status == StatusOnTime || status == StatusDelayed
}

// Schedule is a planned run of a train between two stations.
type Schedule struct {
	ID             int64          `json:"id"`
	TrainID        int64          `json:"train_id"`
	StartStationID int64          `json:"start_station_id"`
	EndStationID   int64          `json:"end_station_id"`
	DepartureTime  time.Time      `json:"departure_time"`
	ArrivalTime    time.Time      `json:"arrival_time"`
	Status         ScheduleStatus `json:"status"`
	DelayMinutes   int            `json:"delay_minutes"`
	ExternalTripID *string        `json:"external_trip_id,omitempty"`
}

// Journey is one ordered stop of a schedule. The first stop has no
// arrival time and the last stop has no departure time.
type Journey struct {
	ID            int64      `json:"id"`
	ScheduleID    int64      `json:"schedule_id"`
	StationID     int64      `json:"station_id"`
	StopOrder     int        `json:"stop_order"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
}
