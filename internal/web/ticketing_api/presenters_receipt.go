package ticketing_api

import (
	"fmt"
	"time"

	"tarediiran-industries.com/ticketing-services/internal/model"
)

const receiptTimeLayout = "Mon 02 Jan 2006 15:04 MST"

// ReceiptDTO is everything needed to print one booking.
type ReceiptDTO struct {
	Booking   model.Booking
	Passenger model.Passenger
	Schedule  model.Schedule
	Train     model.Train
	Stops     []model.Journey
	Stations  map[int64]model.Station
	Coaches   map[int64]model.Coach
}

func (dto ReceiptDTO) stationName(id int64) string {
	if station, ok := dto.Stations[id]; ok {
		return station.Name
	}
	return fmt.Sprintf("station %d", id)
}

// segment is the span of the first ticket, or the whole run for a booking
// without tickets.
func (dto ReceiptDTO) segment() (fromID, toID int64, departure, arrival time.Time) {
	fromID, toID = dto.Schedule.StartStationID, dto.Schedule.EndStationID
	departure, arrival = dto.Schedule.DepartureTime, dto.Schedule.ArrivalTime
	if len(dto.Booking.Tickets) > 0 {
		fromID = dto.Booking.Tickets[0].DepartureStationID
		toID = dto.Booking.Tickets[0].ArrivalStationID
	}
	for _, stop := range dto.Stops {
		if stop.StationID == fromID && stop.DepartureTime != nil {
			departure = *stop.DepartureTime
		}
		if stop.StationID == toID && stop.ArrivalTime != nil {
			arrival = *stop.ArrivalTime
		}
	}
	return fromID, toID, departure, arrival
}

func BuildReceiptVM(dto ReceiptDTO) ReceiptVM {
	fromID, toID, departure, arrival := dto.segment()

	tickets := make([]ReceiptTicketVM, 0, len(dto.Booking.Tickets))
	for _, ticket := range dto.Booking.Tickets {
		coach := dto.Coaches[ticket.CoachID]
		tickets = append(tickets, ReceiptTicketVM{
			Coach:  coach.Label,
			Class:  string(coach.Type),
			Seat:   ticket.SeatNumber,
			From:   dto.stationName(ticket.DepartureStationID),
			To:     dto.stationName(ticket.ArrivalStationID),
			Status: string(ticket.Status),
			Price:  ticket.Price.StringFixed(2),
		})
	}

	vm := ReceiptVM{
		Reference:      dto.Booking.Reference,
		Status:         string(dto.Booking.Status),
		BookedAt:       dto.Booking.BookedAt.UTC().Format(receiptTimeLayout),
		Train:          fmt.Sprintf("%s %s", dto.Train.Number, dto.Train.Name),
		From:           dto.stationName(fromID),
		To:             dto.stationName(toID),
		Departure:      departure.UTC().Format(receiptTimeLayout),
		Arrival:        arrival.UTC().Format(receiptTimeLayout),
		Duration:       formatDuration(arrival.Sub(departure)),
		Passenger:      dto.Passenger.Name,
		PassengerEmail: dto.Passenger.Email,
		Tickets:        tickets,
		Total:          dto.Booking.TotalAmount.StringFixed(2),
	}
	switch dto.Schedule.Status {
	case model.StatusDelayed:
		vm.Delay = fmt.Sprintf("Delayed by %d min", dto.Schedule.DelayMinutes)
	case model.StatusCancelled:
		vm.Delay = "This train has been cancelled"
	}
	return vm
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", hours, minutes)
}
