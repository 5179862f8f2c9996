package ticketing_api

import (
	"fmt"
	"time"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

const boardPollSeconds = 30

func BuildBoardPageVM(station model.Station, table BoardTableVM, pollSeconds int) BoardPageVM {
	if pollSeconds <= 0 {
		pollSeconds = boardPollSeconds
	}
	return BoardPageVM{
		Code:        station.Code,
		Station:     station.Name,
		City:        station.City,
		PollSeconds: pollSeconds,
		Table:       table,
	}
}

func BuildBoardTableVM(station model.Station, departures []model.Departure, now time.Time) BoardTableVM {
	rows := make([]BoardRowVM, 0, len(departures))
	for _, departure := range departures {
		expected := departure.Expected()
		row := BoardRowVM{
			Scheduled:   departure.DepartureTime.Format("15:04"),
			Expected:    expected.Format("15:04"),
			Train:       departure.TrainNumber + " " + departure.TrainName,
			Destination: departure.DestinationName,
			Status:      string(departure.Status),
			Leaves:      formatCountdown(now, expected),
		}
		switch departure.Status {
		case model.StatusDelayed:
			row.Status = fmt.Sprintf("delayed %dm", departure.DelayMinutes)
		case model.StatusCancelled:
			row.Expected = "-"
			row.Leaves = ""
		}
		rows = append(rows, row)
	}

	return BoardTableVM{
		Code:      station.Code,
		UpdatedAt: now.UTC().Format("15:04:05"),
		Rows:      rows,
	}
}

func formatCountdown(now, then time.Time) string {
	d := then.Sub(now)
	if d <= 0 {
		return "departing"
	}
	if d < time.Minute {
		return "in <1m"
	}
	return "in " + formatDuration(d)
}
